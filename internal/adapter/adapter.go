// Package adapter exposes an OpenVR runtime to the host as a live list of
// tracked joints.
//
// All lifecycle operations, the per-frame update and event driven
// re-enumeration serialize on one lifecycle mutex. Mutations of the joint
// collection additionally take the host's update lock, always after the
// lifecycle mutex. Methods suffixed Locked expect the lifecycle mutex held.
package adapter

import (
	"fmt"
	"sync"
	"time"

	"github.com/jointfeed/openvr-adapter/internal/config"
	"github.com/jointfeed/openvr-adapter/internal/elevation"
	"github.com/jointfeed/openvr-adapter/internal/enumerator"
	"github.com/jointfeed/openvr-adapter/internal/session"
	"github.com/jointfeed/openvr-adapter/internal/status"
	"github.com/jointfeed/openvr-adapter/pkg/host"
	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observer is told about status changes and device enumerations. It is called
// with the lifecycle mutex held and must not call back into the adapter.
type Observer interface {
	StatusChanged(s status.Status)
	DevicesEnumerated(entries []enumerator.Entry)
}

// Dependencies holds all dependencies for the adapter.
type Dependencies struct {
	Host    host.Host
	Runtime openvr.Runtime
	// Session defaults to the process-wide owner of Runtime.
	Session *session.Owner
	// Inspector defaults to a procfs inspector looking for Config.ServerProcess.
	Inspector elevation.Inspector
	Observer  Observer
}

// Adapter is the tracking device the host loads.
type Adapter struct {
	deps    Dependencies
	cfg     config.AdapterConfig
	log     host.Logger
	enum    *enumerator.Enumerator
	metrics *metrics

	mu        sync.Mutex
	lease     *session.Lease
	overlay   openvr.OverlayHandle
	slots     []openvr.DeviceIndex
	poses     []openvr.TrackedDevicePose
	quitTimer *time.Timer
	quitGen   uint64
	loaded    bool

	joints *host.JointCollection

	statusMu sync.RWMutex
	state    State
	status   status.Status
}

// New creates an adapter. Nothing touches the runtime until Initialize.
func New(deps Dependencies, cfg config.AdapterConfig) (*Adapter, error) {
	if deps.Host == nil {
		return nil, fmt.Errorf("adapter: host is required")
	}
	if deps.Runtime == nil {
		return nil, fmt.Errorf("adapter: runtime is required")
	}
	if deps.Session == nil {
		deps.Session = session.Shared(deps.Runtime)
	}
	if deps.Inspector == nil {
		deps.Inspector = elevation.ProcInspector{ServerProcess: cfg.ServerProcess}
	}

	a := &Adapter{
		deps:   deps,
		cfg:    cfg,
		log:    deps.Host.Logger(),
		enum:   enumerator.New(deps.Runtime, cfg.SerialPrefix),
		poses:  make([]openvr.TrackedDevicePose, openvr.MaxTrackedDeviceCount),
		joints: host.NewJointCollection(),
		state:  StateUninitialized,
		status: status.Error(status.DetailNotInitialized),
	}

	m, err := newMetrics(a)
	if err != nil {
		return nil, err
	}
	a.metrics = m

	return a, nil
}

// Capabilities are fixed for this adapter.
func (a *Adapter) Capabilities() host.Capabilities {
	return host.Capabilities{
		SelfUpdate:              false,
		PhysicsOverride:         true,
		PositionFilterBlocking:  true,
		FlipSupported:           false,
		AppOrientationSupported: false,
	}
}

// OnLoad is called once by the host after construction.
func (a *Adapter) OnLoad() {
	defer a.guard("OnLoad")

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return
	}
	a.loaded = true
	a.log.Info("OpenVR adapter loaded",
		"serialPrefix", a.cfg.SerialPrefix,
		"connectTimeout", a.cfg.ConnectTimeout,
	)
	a.setStatusLocked(StateUninitialized, status.Error(status.DetailNotInitialized))
}

// Joints returns the live joint collection.
func (a *Adapter) Joints() *host.JointCollection {
	return a.joints
}

// TrackedSlots returns the native slot behind each joint, index aligned with Joints.
func (a *Adapter) TrackedSlots() []openvr.DeviceIndex {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]openvr.DeviceIndex(nil), a.slots...)
}

// IsTracked reports whether the adapter is connected and any joint is tracked.
func (a *Adapter) IsTracked() bool {
	return a.State() == StateConnected && a.joints.AnyTracked()
}

// State returns the lifecycle state.
func (a *Adapter) State() State {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.state
}

// Status returns the current status with its display detail.
func (a *Adapter) Status() status.Status {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// StatusCode is the code the host displays: 0 success, 1 error.
func (a *Adapter) StatusCode() int {
	return a.Status().Code
}

// StatusMessage returns the localized status string.
func (a *Adapter) StatusMessage() string {
	return a.deps.Host.Localize(a.Status().LocalizationKey())
}

// ErrorDocsURI links to the documentation section for the current status code.
func (a *Adapter) ErrorDocsURI() string {
	lang := a.deps.Host.DocsLanguage()
	if lang == "" {
		lang = a.cfg.DocsLanguage
	}
	return status.DocsURI(a.cfg.DocsBaseURL, lang, a.StatusCode())
}

func (a *Adapter) setStatusLocked(state State, st status.Status) {
	a.statusMu.Lock()
	changed := a.status != st
	a.state = state
	a.status = st
	a.statusMu.Unlock()

	if changed && a.deps.Observer != nil {
		a.deps.Observer.StatusChanged(st)
	}
}

// guard keeps panics from crossing the host boundary.
func (a *Adapter) guard(op string) {
	if r := recover(); r != nil {
		a.log.Error("Recovered from panic", "op", op, "panic", fmt.Sprint(r))
	}
}
