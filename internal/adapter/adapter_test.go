package adapter

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jointfeed/openvr-adapter/internal/config"
	"github.com/jointfeed/openvr-adapter/internal/elevation"
	"github.com/jointfeed/openvr-adapter/internal/enumerator"
	"github.com/jointfeed/openvr-adapter/internal/logging"
	"github.com/jointfeed/openvr-adapter/internal/session"
	"github.com/jointfeed/openvr-adapter/internal/status"
	"github.com/jointfeed/openvr-adapter/pkg/host"
	"github.com/jointfeed/openvr-adapter/pkg/openvr"
	"github.com/jointfeed/openvr-adapter/pkg/openvr/openvrtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHost struct {
	mu        sync.Mutex
	refreshes atomic.Int32
	lang      string
}

func (h *testHost) Logger() host.Logger        { return logging.Nop }
func (h *testHost) UpdateLock() sync.Locker    { return &h.mu }
func (h *testHost) Localize(key string) string { return "loc:" + key }
func (h *testHost) RefreshStatus()             { h.refreshes.Add(1) }
func (h *testHost) DocsLanguage() string       { return h.lang }

type recordingObserver struct {
	mu           sync.Mutex
	statuses     []status.Status
	enumerations [][]enumerator.Entry
}

func (o *recordingObserver) StatusChanged(s status.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, s)
}

func (o *recordingObserver) DevicesEnumerated(entries []enumerator.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enumerations = append(o.enumerations, entries)
}

func testConfig() config.AdapterConfig {
	return config.AdapterConfig{
		ConnectTimeout:    200 * time.Millisecond,
		QuitShutdownDelay: 30 * time.Millisecond,
		HapticPulse:       3999 * time.Microsecond,
		SerialPrefix:      enumerator.DefaultSerialPrefix,
		OverlayKey:        "test.overlay",
		OverlayName:       "Test",
		DocsBaseURL:       "https://docs.example.com/",
		DocsLanguage:      "en",
	}
}

type fixture struct {
	rt       *openvrtest.Runtime
	host     *testHost
	observer *recordingObserver
	adapter  *Adapter
}

func newFixture(t *testing.T, inspector elevation.Inspector) *fixture {
	t.Helper()
	rt := openvrtest.New()
	rt.SetDevice(0, openvrtest.Device{Class: openvr.DeviceClassHMD, Serial: "HMD-1", Pose: openvrtest.ValidPose(0, 1.7, 0)})
	rt.SetDevice(1, openvrtest.Device{Class: openvr.DeviceClassTrackingReference, Serial: "LHB-1"})
	rt.SetDevice(3, openvrtest.Device{Class: openvr.DeviceClassController, Serial: "CTRL-L", Pose: openvrtest.ValidPose(-0.3, 1, 0)})
	rt.SetDevice(5, openvrtest.Device{Class: openvr.DeviceClassGenericTracker, Serial: "AME-VIRTUAL"})
	rt.SetDevice(7, openvrtest.Device{Class: openvr.DeviceClassGenericTracker, Serial: "TRK-WAIST", Pose: openvrtest.ValidPose(0, 1, 0)})

	if inspector == nil {
		inspector = elevation.Static{}
	}
	h := &testHost{}
	obs := &recordingObserver{}
	a, err := New(Dependencies{
		Host:      h,
		Runtime:   rt,
		Session:   session.NewOwner(rt, openvr.ApplicationOverlay),
		Inspector: inspector,
		Observer:  obs,
	}, testConfig())
	require.NoError(t, err)
	a.OnLoad()

	return &fixture{rt: rt, host: h, observer: obs, adapter: a}
}

func jointNames(c *host.JointCollection) []string {
	var names []string
	for _, j := range c.Snapshot() {
		names = append(names, j.Name)
	}
	return names
}

func TestNew_RequiresHostAndRuntime(t *testing.T) {
	_, err := New(Dependencies{Runtime: openvrtest.New()}, testConfig())
	assert.Error(t, err)

	_, err = New(Dependencies{Host: &testHost{}}, testConfig())
	assert.Error(t, err)
}

func TestOnLoad_NotInitialized(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, StateUninitialized, f.adapter.State())
	assert.Equal(t, status.CodeError, f.adapter.StatusCode())
	assert.Equal(t, status.DetailNotInitialized, f.adapter.Status().Detail)
	assert.Equal(t, 0, f.rt.InitCalls())
	assert.False(t, f.adapter.IsTracked())
}

func TestInitialize_Connects(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	assert.Equal(t, StateConnected, f.adapter.State())
	assert.Equal(t, status.CodeOK, f.adapter.StatusCode())
	assert.Equal(t, "loc:/Plugins/OpenVR/Statuses/Success", f.adapter.StatusMessage())
	assert.Equal(t, 1, f.rt.OverlayCount())
	assert.Greater(t, f.host.refreshes.Load(), int32(0))

	assert.Equal(t, []string{"HMD-1", "CTRL-L", "TRK-WAIST"}, jointNames(f.adapter.Joints()))
	assert.Equal(t, []openvr.DeviceIndex{0, 3, 7}, f.adapter.TrackedSlots())
	assert.True(t, f.adapter.IsTracked())

	require.Len(t, f.observer.enumerations, 1)
	assert.Len(t, f.observer.enumerations[0], 3)
}

func TestInitialize_Reentry(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()
	f.adapter.Initialize()

	assert.Equal(t, StateConnected, f.adapter.State())
	assert.Equal(t, 1, f.rt.InitCalls())
	assert.Equal(t, 1, f.rt.OverlayCount())
	assert.Equal(t, 3, f.adapter.Joints().Len())
}

func TestInitialize_ElevationMismatchSkipsRuntime(t *testing.T) {
	tests := []struct {
		name      string
		inspector elevation.Static
		detail    status.Detail
	}{
		{"self elevated", elevation.Static{Self: true}, status.DetailSelfElevated},
		{"runtime elevated", elevation.Static{Runtime: true}, status.DetailRuntimeElevated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.inspector)
			f.adapter.Initialize()

			assert.Equal(t, StateError, f.adapter.State())
			assert.Equal(t, status.CodeError, f.adapter.StatusCode())
			assert.Equal(t, tt.detail, f.adapter.Status().Detail)
			assert.Equal(t, 0, f.rt.InitCalls())
			assert.Equal(t, 0, f.adapter.Joints().Len())
		})
	}
}

func TestInitialize_InitFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.rt.SetInit(openvr.InitErrorHmdNotFound, 0)

	f.adapter.Initialize()

	assert.Equal(t, StateError, f.adapter.State())
	assert.Equal(t, status.DetailInitFailed, f.adapter.Status().Detail)
	assert.False(t, f.rt.Active())

	f.rt.SetInit(openvr.InitErrorNone, 0)
	f.adapter.Initialize()
	assert.Equal(t, StateConnected, f.adapter.State())
}

func TestInitialize_Timeout(t *testing.T) {
	f := newFixture(t, nil)
	f.rt.SetInit(openvr.InitErrorNone, time.Second)
	f.adapter.cfg.ConnectTimeout = 20 * time.Millisecond

	start := time.Now()
	f.adapter.Initialize()

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StateError, f.adapter.State())
	assert.Equal(t, status.CodeError, f.adapter.StatusCode())
	assert.Equal(t, status.DetailTimeout, f.adapter.Status().Detail)

	// the abandoned init completes later and must not leave a session open
	assert.Eventually(t, func() bool {
		return f.rt.InitCalls() == 1 && !f.rt.Active() && f.rt.ShutdownCalls() == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestShutdown_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	f.adapter.Shutdown()
	first := f.adapter.Status()
	f.adapter.Shutdown()

	assert.Equal(t, first, f.adapter.Status())
	assert.Equal(t, StateUninitialized, f.adapter.State())
	assert.Equal(t, status.Error(status.DetailShutdown), f.adapter.Status())
	assert.Equal(t, 1, f.rt.ShutdownCalls())
	assert.Equal(t, 0, f.rt.OverlayCount())
	assert.False(t, f.adapter.IsTracked())
}

func TestShutdown_BeforeInitialize(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Shutdown()

	assert.Equal(t, StateUninitialized, f.adapter.State())
	assert.Equal(t, 0, f.rt.ShutdownCalls())
}

func TestShutdown_SharedSessionOutlivesFirstAdapter(t *testing.T) {
	rt := openvrtest.New()
	owner := session.NewOwner(rt, openvr.ApplicationOverlay)
	cfg := testConfig()

	newAdapter := func(key string) *Adapter {
		c := cfg
		c.OverlayKey = key
		a, err := New(Dependencies{Host: &testHost{}, Runtime: rt, Session: owner, Inspector: elevation.Static{}}, c)
		require.NoError(t, err)
		return a
	}
	first := newAdapter("first")
	second := newAdapter("second")

	first.Initialize()
	second.Initialize()
	assert.Equal(t, 1, rt.InitCalls())

	first.Shutdown()
	assert.True(t, rt.Active())
	assert.Equal(t, StateConnected, second.State())

	second.Shutdown()
	assert.False(t, rt.Active())
}

func TestUpdate_RefreshesPosesInPlace(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	var changes atomic.Int32
	unsubscribe := f.adapter.Joints().Subscribe(func(host.Change) { changes.Add(1) })
	defer unsubscribe()

	f.rt.SetPose(3, openvrtest.ValidPose(0.5, 1.2, -0.25))
	f.rt.SetPose(7, openvr.TrackedDevicePose{DeviceIsConnected: true})
	f.adapter.Update()

	ctrl, ok := f.adapter.Joints().At(1)
	require.True(t, ok)
	assert.Equal(t, "CTRL-L", ctrl.Name)
	assert.InDelta(t, 0.5, ctrl.Position.X(), 1e-6)
	assert.InDelta(t, 1.2, ctrl.Position.Y(), 1e-6)
	assert.InDelta(t, -0.25, ctrl.Position.Z(), 1e-6)
	assert.Equal(t, host.Tracked, ctrl.State)

	waist, ok := f.adapter.Joints().At(2)
	require.True(t, ok)
	assert.Equal(t, host.NotTracked, waist.State)

	assert.Equal(t, int32(0), changes.Load())
}

func TestUpdate_UsesPlayspaceOrigin(t *testing.T) {
	f := newFixture(t, nil)
	f.rt.SetStanding(openvrtest.Translation(1, 0, 2))
	f.adapter.Initialize()

	f.rt.SetPose(0, openvrtest.ValidPose(1, 1.7, 2))
	f.adapter.Update()

	hmd, ok := f.adapter.Joints().At(0)
	require.True(t, ok)
	assert.InDelta(t, 0, hmd.Position.X(), 1e-6)
	assert.InDelta(t, 1.7, hmd.Position.Y(), 1e-6)
	assert.InDelta(t, 0, hmd.Position.Z(), 1e-6)
}

func TestUpdate_NoopWhenDisconnected(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Update()
	assert.Equal(t, 0, f.rt.PoseCalls())
}

func TestUpdate_SingleBatchedQuery(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()
	before := f.rt.PoseCalls()

	f.adapter.Update()

	assert.Equal(t, before+1, f.rt.PoseCalls())
}

func TestUpdate_DeviceActivationReenumerates(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	var resets []host.Change
	unsubscribe := f.adapter.Joints().Subscribe(func(c host.Change) { resets = append(resets, c) })
	defer unsubscribe()

	f.rt.SetDevice(11, openvrtest.Device{Class: openvr.DeviceClassGenericTracker, Serial: "TRK-FOOT", Pose: openvrtest.ValidPose(0, 0, 0)})
	f.rt.PushEvent(openvr.Event{Type: openvr.EventTrackedDeviceActivated, DeviceIndex: 11})
	f.rt.PushEvent(openvr.Event{Type: openvr.EventOther})
	f.adapter.Update()

	require.Len(t, resets, 1)
	assert.Equal(t, host.ChangeReset, resets[0].Kind)
	assert.Equal(t, 4, resets[0].Len)
	assert.Equal(t, []openvr.DeviceIndex{0, 3, 7, 11}, f.adapter.TrackedSlots())
	assert.Equal(t, 0, f.rt.PendingEvents())
}

func TestUpdate_DeviceDeactivationReenumerates(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	f.rt.RemoveDevice(3)
	f.rt.PushEvent(openvr.Event{Type: openvr.EventTrackedDeviceDeactivated, DeviceIndex: 3})
	f.adapter.Update()

	assert.Equal(t, []string{"HMD-1", "TRK-WAIST"}, jointNames(f.adapter.Joints()))
	assert.Equal(t, []openvr.DeviceIndex{0, 7}, f.adapter.TrackedSlots())
}

func TestUpdate_EnumerationFailureKeepsPreviousJoints(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	f.rt.FailPoses(errors.New("runtime busy"))
	f.rt.PushEvent(openvr.Event{Type: openvr.EventTrackedDeviceActivated, DeviceIndex: 9})
	f.adapter.Update()

	assert.Equal(t, StateConnected, f.adapter.State())
	assert.Equal(t, []openvr.DeviceIndex{0, 3, 7}, f.adapter.TrackedSlots())
	assert.Equal(t, 3, f.adapter.Joints().Len())

	f.rt.FailPoses(nil)
	f.adapter.Update()
	assert.True(t, f.adapter.IsTracked())
}

func TestUpdate_RecoversFromRuntimePanic(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	f.rt.PanicPoses(true)
	assert.NotPanics(t, f.adapter.Update)
	assert.Equal(t, StateConnected, f.adapter.State())

	f.rt.PanicPoses(false)
	f.rt.SetPose(0, openvrtest.ValidPose(0, 1.5, 0))
	f.adapter.Update()

	hmd, _ := f.adapter.Joints().At(0)
	assert.InDelta(t, 1.5, hmd.Position.Y(), 1e-6)
}

func TestUpdate_QuitDefersShutdown(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	f.rt.PushEvent(openvr.Event{Type: openvr.EventQuit})
	f.adapter.Update()

	assert.True(t, f.adapter.QuitPending())
	assert.Equal(t, StateConnected, f.adapter.State())

	assert.Eventually(t, func() bool {
		return f.adapter.State() == StateUninitialized
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.rt.Active())
	assert.False(t, f.adapter.QuitPending())
	assert.Equal(t, status.DetailShutdown, f.adapter.Status().Detail)
}

func TestUpdate_QuitRepeatedSchedulesOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	f.rt.PushEvent(openvr.Event{Type: openvr.EventQuit})
	f.rt.PushEvent(openvr.Event{Type: openvr.EventQuit})
	f.adapter.Update()

	assert.Eventually(t, func() bool {
		return f.adapter.State() == StateUninitialized
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.rt.ShutdownCalls())
}

func TestShutdown_CancelsPendingQuit(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.cfg.QuitShutdownDelay = 50 * time.Millisecond
	f.adapter.Initialize()

	f.rt.PushEvent(openvr.Event{Type: openvr.EventQuit})
	f.adapter.Update()
	require.True(t, f.adapter.QuitPending())

	f.adapter.Shutdown()
	assert.False(t, f.adapter.QuitPending())

	f.adapter.Initialize()
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, StateConnected, f.adapter.State())
	assert.True(t, f.rt.Active())
}

func TestSignalJoint(t *testing.T) {
	f := newFixture(t, nil)

	f.adapter.SignalJoint(0)
	assert.Empty(t, f.rt.Pulses())

	f.adapter.Initialize()
	f.adapter.SignalJoint(1)
	f.adapter.SignalJoint(-1)
	f.adapter.SignalJoint(3)

	pulses := f.rt.Pulses()
	require.Len(t, pulses, 1)
	assert.Equal(t, openvr.DeviceIndex(3), pulses[0].Index)
	assert.Equal(t, uint32(0), pulses[0].Axis)
	assert.Equal(t, uint16(3999), pulses[0].DurationMicros)
}

func TestErrorDocsURI(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, "https://docs.example.com/en/error-codes/#6", f.adapter.ErrorDocsURI())

	f.host.lang = "de"
	f.adapter.Initialize()
	assert.Equal(t, "https://docs.example.com/de/error-codes/#6", f.adapter.ErrorDocsURI())
}

func TestCapabilities(t *testing.T) {
	f := newFixture(t, nil)
	caps := f.adapter.Capabilities()

	assert.True(t, caps.PhysicsOverride)
	assert.True(t, caps.PositionFilterBlocking)
	assert.False(t, caps.SelfUpdate)
	assert.False(t, caps.FlipSupported)
	assert.False(t, caps.AppOrientationSupported)
}

func TestObserver_StatusTransitions(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()
	f.adapter.Shutdown()

	var details []status.Detail
	for _, s := range f.observer.statuses {
		details = append(details, s.Detail)
	}
	assert.Equal(t, []status.Detail{
		status.DetailConnecting,
		status.DetailNone,
		status.DetailShutdown,
	}, details)
}

// finishes fails the test if fn does not return within a second.
func finishes(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("call did not return, host update lock is still held")
	}
}

func assertHostLockFree(t *testing.T, h *testHost) {
	t.Helper()
	require.True(t, h.mu.TryLock(), "host update lock still held")
	h.mu.Unlock()
}

func TestUpdate_ActivationWithUnchangedDevicesStillResets(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	var resets []host.Change
	f.adapter.Joints().Subscribe(func(c host.Change) { resets = append(resets, c) })

	f.rt.PushEvent(openvr.Event{Type: openvr.EventTrackedDeviceActivated, DeviceIndex: 3})
	f.adapter.Update()

	require.Len(t, resets, 1)
	assert.Equal(t, host.ChangeReset, resets[0].Kind)
	assert.Equal(t, 3, resets[0].Len)
	assert.Equal(t, []openvr.DeviceIndex{0, 3, 7}, f.adapter.TrackedSlots())
}

func TestUpdate_SubscriberPanicReleasesHostLock(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()

	var panicked atomic.Bool
	f.adapter.Joints().Subscribe(func(host.Change) {
		if panicked.CompareAndSwap(false, true) {
			panic("subscriber failed")
		}
	})

	f.rt.PushEvent(openvr.Event{Type: openvr.EventTrackedDeviceActivated, DeviceIndex: 7})
	assert.NotPanics(t, f.adapter.Update)
	assert.True(t, panicked.Load())
	assertHostLockFree(t, f.host)

	f.rt.SetPose(0, openvrtest.ValidPose(0, 1.2, 0))
	finishes(t, f.adapter.Update)

	assert.Equal(t, StateConnected, f.adapter.State())
	hmd, _ := f.adapter.Joints().At(0)
	assert.InDelta(t, 1.2, hmd.Position.Y(), 1e-6)
}

type panickingOverlayRuntime struct {
	*openvrtest.Runtime
}

func (r panickingOverlayRuntime) DestroyOverlay(openvr.OverlayHandle) error {
	panic("overlay teardown crashed")
}

func TestShutdown_OverlayPanicStillClosesSession(t *testing.T) {
	f := newFixture(t, nil)
	rt := panickingOverlayRuntime{f.rt}
	a, err := New(Dependencies{
		Host:      f.host,
		Runtime:   rt,
		Session:   session.NewOwner(rt, openvr.ApplicationOverlay),
		Inspector: elevation.Static{},
	}, testConfig())
	require.NoError(t, err)
	a.OnLoad()

	a.Initialize()
	require.Equal(t, StateConnected, a.State())

	assert.NotPanics(t, a.Shutdown)
	assertHostLockFree(t, f.host)
	assert.Equal(t, StateUninitialized, a.State())
	assert.Equal(t, status.DetailShutdown, a.Status().Detail)
	assert.False(t, f.rt.Active())
	assert.False(t, a.IsTracked())

	finishes(t, a.Initialize)
	assert.Equal(t, StateConnected, a.State())
}

func TestInitialize_MismatchWhileConnectedClosesSession(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Initialize()
	require.Equal(t, StateConnected, f.adapter.State())
	require.True(t, f.adapter.IsTracked())

	f.adapter.deps.Inspector = elevation.Static{Self: true}
	f.adapter.Initialize()

	assert.Equal(t, StateError, f.adapter.State())
	assert.Equal(t, status.FromMismatch(elevation.SelfElevated), f.adapter.Status())
	assert.False(t, f.rt.Active())
	assert.Equal(t, 0, f.rt.OverlayCount())
	assert.False(t, f.adapter.IsTracked())
	for _, j := range f.adapter.Joints().Snapshot() {
		assert.Equal(t, host.NotTracked, j.State, j.Name)
	}
	assertHostLockFree(t, f.host)
}
