// Package openvrtest provides a scriptable in-memory openvr.Runtime.
package openvrtest

import (
	"errors"
	"sync"
	"time"

	"github.com/jointfeed/openvr-adapter/internal/queue"
	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

// ErrNoSession is returned by pose queries made outside an active session.
var ErrNoSession = errors.New("openvrtest: no active session")

// Device is one simulated device slot.
type Device struct {
	Class  openvr.DeviceClass
	Serial string
	Pose   openvr.TrackedDevicePose
}

// Pulse records a haptic pulse request.
type Pulse struct {
	Index          openvr.DeviceIndex
	Axis           uint32
	DurationMicros uint16
}

// Runtime is a fake native runtime. It is safe for concurrent use.
type Runtime struct {
	mu sync.Mutex

	devices  map[openvr.DeviceIndex]Device
	events   *queue.Queue[openvr.Event]
	standing openvr.Matrix34

	initResult openvr.InitError
	initDelay  time.Duration
	poseErr    error
	posePanic  bool

	active        bool
	initCalls     int
	shutdownCalls int
	poseCalls     int

	nextOverlay openvr.OverlayHandle
	overlays    map[openvr.OverlayHandle]string
	pulses      []Pulse
}

var _ openvr.Runtime = (*Runtime)(nil)

// New returns a runtime with no devices and an identity playspace.
func New() *Runtime {
	return &Runtime{
		devices:  make(map[openvr.DeviceIndex]Device),
		events:   queue.New[openvr.Event](),
		standing: Identity(),
		overlays: make(map[openvr.OverlayHandle]string),
	}
}

// Identity returns the identity transform.
func Identity() openvr.Matrix34 {
	return openvr.Matrix34{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// Translation returns an identity rotation translated to (x, y, z).
func Translation(x, y, z float32) openvr.Matrix34 {
	m := Identity()
	m[0][3], m[1][3], m[2][3] = x, y, z
	return m
}

// ValidPose returns a connected, valid pose at (x, y, z).
func ValidPose(x, y, z float32) openvr.TrackedDevicePose {
	return openvr.TrackedDevicePose{
		DeviceToAbsoluteTracking: Translation(x, y, z),
		TrackingResult:           openvr.TrackingResultRunningOK,
		PoseIsValid:              true,
		DeviceIsConnected:        true,
	}
}

// SetDevice places a device into a slot, replacing whatever was there.
func (r *Runtime) SetDevice(index openvr.DeviceIndex, d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[index] = d
}

// RemoveDevice empties a slot.
func (r *Runtime) RemoveDevice(index openvr.DeviceIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, index)
}

// SetPose updates only the pose of an existing slot.
func (r *Runtime) SetPose(index openvr.DeviceIndex, pose openvr.TrackedDevicePose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.devices[index]
	d.Pose = pose
	r.devices[index] = d
}

// SetStanding sets the zero-pose-to-standing transform.
func (r *Runtime) SetStanding(m openvr.Matrix34) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standing = m
}

// SetInit configures the result of the next Init calls and how long they block.
func (r *Runtime) SetInit(result openvr.InitError, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initResult = result
	r.initDelay = delay
}

// FailPoses makes pose queries return err. A nil err restores normal behavior.
func (r *Runtime) FailPoses(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poseErr = err
}

// PanicPoses makes pose queries panic, simulating a runtime unloaded mid-call.
func (r *Runtime) PanicPoses(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posePanic = enabled
}

// PushEvent queues an overlay event.
func (r *Runtime) PushEvent(e openvr.Event) {
	r.events.Push(e)
}

// PendingEvents reports how many events are still queued.
func (r *Runtime) PendingEvents() int {
	return r.events.Len()
}

func (r *Runtime) Init(appType openvr.ApplicationType) openvr.InitError {
	r.mu.Lock()
	r.initCalls++
	delay, result := r.initDelay, r.initResult
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if result == openvr.InitErrorNone {
		r.active = true
	}
	return result
}

func (r *Runtime) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdownCalls++
	r.active = false
	r.overlays = make(map[openvr.OverlayHandle]string)
}

func (r *Runtime) DeviceToAbsoluteTrackingPose(origin openvr.TrackingUniverseOrigin, predicted float32, poses []openvr.TrackedDevicePose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poseCalls++

	if r.posePanic {
		panic("openvrtest: runtime unloaded")
	}
	if r.poseErr != nil {
		return r.poseErr
	}
	if !r.active {
		return ErrNoSession
	}

	for i := range poses {
		if d, ok := r.devices[openvr.DeviceIndex(i)]; ok {
			poses[i] = d.Pose
		} else {
			poses[i] = openvr.TrackedDevicePose{}
		}
	}
	return nil
}

func (r *Runtime) RawZeroPoseToStandingAbsoluteTrackingPose() (openvr.Matrix34, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return openvr.Matrix34{}, ErrNoSession
	}
	return r.standing, nil
}

func (r *Runtime) DeviceClass(index openvr.DeviceIndex) openvr.DeviceClass {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[index]; ok {
		return d.Class
	}
	return openvr.DeviceClassInvalid
}

func (r *Runtime) StringProperty(index openvr.DeviceIndex, prop openvr.DeviceProperty) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[index]
	if !ok {
		return "", errors.New("openvrtest: invalid device index")
	}
	if prop != openvr.PropSerialNumber {
		return "", errors.New("openvrtest: unknown property")
	}
	return d.Serial, nil
}

func (r *Runtime) TriggerHapticPulse(index openvr.DeviceIndex, axis uint32, durationMicros uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return ErrNoSession
	}
	r.pulses = append(r.pulses, Pulse{Index: index, Axis: axis, DurationMicros: durationMicros})
	return nil
}

func (r *Runtime) CreateOverlay(key, name string) (openvr.OverlayHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0, ErrNoSession
	}
	for _, k := range r.overlays {
		if k == key {
			return 0, errors.New("openvrtest: overlay key in use")
		}
	}
	r.nextOverlay++
	r.overlays[r.nextOverlay] = key
	return r.nextOverlay, nil
}

func (r *Runtime) DestroyOverlay(handle openvr.OverlayHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overlays[handle]; !ok {
		return errors.New("openvrtest: unknown overlay")
	}
	delete(r.overlays, handle)
	return nil
}

func (r *Runtime) PollNextOverlayEvent(handle openvr.OverlayHandle) (openvr.Event, bool) {
	r.mu.Lock()
	_, ok := r.overlays[handle]
	r.mu.Unlock()
	if !ok {
		return openvr.Event{}, false
	}
	return r.events.Pop()
}

// Active reports whether a session is open.
func (r *Runtime) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// InitCalls returns how many times Init was entered.
func (r *Runtime) InitCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initCalls
}

// ShutdownCalls returns how many times Shutdown was called.
func (r *Runtime) ShutdownCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdownCalls
}

// PoseCalls returns how many batched pose queries were made.
func (r *Runtime) PoseCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poseCalls
}

// OverlayCount returns the number of live overlays.
func (r *Runtime) OverlayCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.overlays)
}

// Pulses returns a copy of every recorded haptic pulse.
func (r *Runtime) Pulses() []Pulse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pulse(nil), r.pulses...)
}
