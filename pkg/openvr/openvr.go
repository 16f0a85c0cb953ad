// Package openvr describes the slice of the OpenVR runtime API the adapter consumes.
//
// The runtime itself is an external collaborator: a cgo binding or a test double
// implements Runtime. Everything in this package is plain data plus that interface.
package openvr

import "fmt"

// MaxTrackedDeviceCount is the number of device slots the runtime exposes.
const MaxTrackedDeviceCount = 64

// DeviceIndex identifies a device slot within the current runtime session.
// Slots are reassigned freely by the runtime and must never be persisted.
type DeviceIndex uint32

// HmdIndex is the slot that always holds the headset.
const HmdIndex DeviceIndex = 0

// Matrix34 is a row-major 3x4 rigid transform: rotation in columns 0-2,
// translation in column 3.
type Matrix34 [3][4]float32

// Vector3 is a native three component vector.
type Vector3 [3]float32

// TrackingResult reports the quality of a device pose.
type TrackingResult int32

const (
	TrackingResultUninitialized         TrackingResult = 1
	TrackingResultCalibratingInProgress TrackingResult = 100
	TrackingResultCalibratingOutOfRange TrackingResult = 101
	TrackingResultRunningOK             TrackingResult = 200
	TrackingResultRunningOutOfRange     TrackingResult = 201
	TrackingResultFallbackRotationOnly  TrackingResult = 300
)

// TrackedDevicePose is one entry of the batched pose query.
type TrackedDevicePose struct {
	DeviceToAbsoluteTracking Matrix34
	Velocity                 Vector3
	AngularVelocity          Vector3
	TrackingResult           TrackingResult
	PoseIsValid              bool
	DeviceIsConnected        bool
}

// DeviceClass is the runtime's coarse device category.
type DeviceClass int32

const (
	DeviceClassInvalid           DeviceClass = 0
	DeviceClassHMD               DeviceClass = 1
	DeviceClassController        DeviceClass = 2
	DeviceClassGenericTracker    DeviceClass = 3
	DeviceClassTrackingReference DeviceClass = 4
	DeviceClassDisplayRedirect   DeviceClass = 5
	DeviceClassMax               DeviceClass = 6
)

func (c DeviceClass) String() string {
	switch c {
	case DeviceClassInvalid:
		return "Invalid"
	case DeviceClassHMD:
		return "HMD"
	case DeviceClassController:
		return "Controller"
	case DeviceClassGenericTracker:
		return "GenericTracker"
	case DeviceClassTrackingReference:
		return "TrackingReference"
	case DeviceClassDisplayRedirect:
		return "DisplayRedirect"
	case DeviceClassMax:
		return "Max"
	default:
		return fmt.Sprintf("DeviceClass(%d)", int32(c))
	}
}

// DeviceProperty names a string device property.
type DeviceProperty int32

const (
	PropTrackingSystemName DeviceProperty = 1000
	PropModelNumber        DeviceProperty = 1001
	PropSerialNumber       DeviceProperty = 1002
	PropManufacturerName   DeviceProperty = 1005
)

// TrackingUniverseOrigin selects the reference frame for pose queries.
type TrackingUniverseOrigin int32

const (
	TrackingUniverseSeated   TrackingUniverseOrigin = 0
	TrackingUniverseStanding TrackingUniverseOrigin = 1
	TrackingUniverseRaw      TrackingUniverseOrigin = 2
)

// ApplicationType is passed to Init.
type ApplicationType int32

const (
	ApplicationOther      ApplicationType = 0
	ApplicationScene      ApplicationType = 1
	ApplicationOverlay    ApplicationType = 2
	ApplicationBackground ApplicationType = 3
)

// OverlayHandle is an opaque overlay registration. Zero means no overlay.
type OverlayHandle uint64

// EventType is the subset of runtime events the adapter distinguishes.
// Every other native event code maps to EventOther.
type EventType int32

const (
	EventOther                    EventType = 0
	EventTrackedDeviceActivated   EventType = 100
	EventTrackedDeviceDeactivated EventType = 101
	EventQuit                     EventType = 700
)

func (t EventType) String() string {
	switch t {
	case EventTrackedDeviceActivated:
		return "TrackedDeviceActivated"
	case EventTrackedDeviceDeactivated:
		return "TrackedDeviceDeactivated"
	case EventQuit:
		return "Quit"
	default:
		return "Other"
	}
}

// Event is a polled overlay event.
type Event struct {
	Type        EventType
	DeviceIndex DeviceIndex
	AgeSeconds  float32
}

// InitError is the runtime's init result code. InitErrorNone is success.
type InitError int32

const (
	InitErrorNone                     InitError = 0
	InitErrorUnknown                  InitError = 1
	InitErrorInstallationNotFound     InitError = 100
	InitErrorHmdNotFound              InitError = 108
	InitErrorNoServerForBackgroundApp InitError = 121
	InitErrorInitCanceledByUser       InitError = 143
)

// Error implements error so a failed init can be wrapped and matched with errors.As.
func (e InitError) Error() string {
	switch e {
	case InitErrorNone:
		return "openvr: no error"
	case InitErrorInstallationNotFound:
		return "openvr: installation not found"
	case InitErrorNoServerForBackgroundApp:
		return "openvr: no server for background app"
	case InitErrorHmdNotFound:
		return "openvr: hmd not found"
	case InitErrorInitCanceledByUser:
		return "openvr: init canceled by user"
	default:
		return fmt.Sprintf("openvr: init error %d", int32(e))
	}
}

// Runtime is the native runtime binding. Implementations are not required to be
// safe for concurrent use; the adapter serializes every call.
type Runtime interface {
	// Init starts a native session. It may block for a long time; callers bound it.
	Init(appType ApplicationType) InitError
	Shutdown()

	// DeviceToAbsoluteTrackingPose fills poses for every slot in a single call.
	DeviceToAbsoluteTrackingPose(origin TrackingUniverseOrigin, predictedSecondsFromNow float32, poses []TrackedDevicePose) error
	// RawZeroPoseToStandingAbsoluteTrackingPose returns the playspace origin transform.
	RawZeroPoseToStandingAbsoluteTrackingPose() (Matrix34, error)

	DeviceClass(index DeviceIndex) DeviceClass
	StringProperty(index DeviceIndex, prop DeviceProperty) (string, error)

	TriggerHapticPulse(index DeviceIndex, axis uint32, durationMicros uint16) error

	CreateOverlay(key, name string) (OverlayHandle, error)
	DestroyOverlay(handle OverlayHandle) error
	// PollNextOverlayEvent returns false once the queue is empty.
	PollNextOverlayEvent(handle OverlayHandle) (Event, bool)
}
