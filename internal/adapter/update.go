package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/jointfeed/openvr-adapter/internal/enumerator"
	"github.com/jointfeed/openvr-adapter/pkg/host"
	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

// Update is the per-frame tick. It does nothing unless connected. A failing
// tick is logged and skipped; the adapter stays connected and retries on the
// next call.
func (a *Adapter) Update() {
	defer a.guard("Update")

	if a.State() != StateConnected {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State() != StateConnected {
		return
	}

	ctx := context.Background()
	if err := a.tickLocked(); err != nil {
		a.metrics.skipped.Add(ctx, 1)
		a.log.Error("Skipping frame", "error", err)
		return
	}
	a.metrics.ticks.Add(ctx, 1)
}

func (a *Adapter) tickLocked() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime call panicked: %v", r)
		}
	}()

	a.parseEventsLocked()

	rt := a.deps.Runtime
	if err := rt.DeviceToAbsoluteTrackingPose(a.enum.Universe, 0, a.poses); err != nil {
		return fmt.Errorf("querying device poses: %w", err)
	}
	playspace, err := enumerator.Playspace(rt)
	if err != nil {
		return err
	}

	a.withHostLock(func() {
		for i, slot := range a.slots {
			pose := a.poses[slot]
			a.joints.Update(i, func(j *host.TrackedJoint) {
				if !pose.PoseIsValid || !pose.DeviceIsConnected {
					j.State = host.NotTracked
					return
				}
				p := playspace.Convert(pose)
				j.Position = p.Position
				j.Orientation = p.Orientation
				j.Velocity = p.Velocity
				j.AngularVelocity = p.AngularVelocity
				j.State = host.Tracked
			})
		}
	})
	return nil
}

// parseEventsLocked drains the overlay event queue. Several topology events in
// one drain cause a single re-enumeration.
func (a *Adapter) parseEventsLocked() {
	if a.overlay == 0 {
		return
	}

	topologyChanged := false
	for {
		e, ok := a.deps.Runtime.PollNextOverlayEvent(a.overlay)
		if !ok {
			break
		}

		switch e.Type {
		case openvr.EventQuit:
			a.log.Info("OpenVR is quitting, scheduling shutdown", "delay", a.cfg.QuitShutdownDelay)
			a.scheduleQuitLocked()
		case openvr.EventTrackedDeviceActivated, openvr.EventTrackedDeviceDeactivated:
			a.log.Debug("Device topology changed", "event", e.Type.String(), "slot", e.DeviceIndex)
			topologyChanged = true
		default:
		}
	}

	if topologyChanged {
		if err := a.refreshLocked(); err != nil {
			a.log.Error("Re-enumeration failed, keeping previous devices", "error", err)
		}
		a.deps.Host.RefreshStatus()
	}
}

// refreshLocked rebuilds the joint collection from a fresh enumeration. On
// failure the previous collection stays in place.
func (a *Adapter) refreshLocked() error {
	ctx := context.Background()

	entries, err := a.enum.Enumerate(a.lease != nil)
	if err != nil {
		a.metrics.enumerationFailures.Add(ctx, 1)
		return err
	}
	a.metrics.enumerations.Add(ctx, 1)

	joints, slots := enumerator.Split(entries)

	a.withHostLock(func() {
		a.slots = slots
		a.joints.Replace(joints)
	})

	a.log.Info("Enumerated devices", "count", len(entries))
	if a.deps.Observer != nil {
		a.deps.Observer.DevicesEnumerated(entries)
	}
	return nil
}

// markAllUntrackedLocked expects the host lock held.
func (a *Adapter) markAllUntrackedLocked() {
	for i := 0; i < a.joints.Len(); i++ {
		a.joints.Update(i, func(j *host.TrackedJoint) { j.State = host.NotTracked })
	}
}

// scheduleQuitLocked arms the deferred shutdown unless one is already pending.
func (a *Adapter) scheduleQuitLocked() {
	if a.quitTimer != nil {
		return
	}
	gen := a.quitGen
	a.quitTimer = time.AfterFunc(a.cfg.QuitShutdownDelay, func() {
		a.deferredShutdown(gen)
	})
}

func (a *Adapter) deferredShutdown(gen uint64) {
	defer a.guard("deferred shutdown")

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.quitGen {
		return
	}
	a.quitTimer = nil
	a.quitGen++
	a.shutdownLocked("runtime quit")
}

// cancelQuitLocked disarms a pending deferred shutdown. A timer that already
// fired and is waiting for the mutex sees the bumped generation and gives up.
func (a *Adapter) cancelQuitLocked() {
	if a.quitTimer != nil {
		a.quitTimer.Stop()
		a.quitTimer = nil
	}
	a.quitGen++
}

// QuitPending reports whether a deferred shutdown is armed.
func (a *Adapter) QuitPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quitTimer != nil
}
