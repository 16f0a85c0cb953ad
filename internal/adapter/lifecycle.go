package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jointfeed/openvr-adapter/internal/elevation"
	"github.com/jointfeed/openvr-adapter/internal/session"
	"github.com/jointfeed/openvr-adapter/internal/status"
)

// Initialize connects to the runtime. It never blocks longer than the
// configured connect timeout and always returns normally; the outcome is
// visible through Status.
func (a *Adapter) Initialize() {
	defer a.guard("Initialize")

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.deps.Host.RefreshStatus()

	a.cancelQuitLocked()

	mismatch, err := elevation.Classify(a.deps.Inspector)
	if err != nil {
		a.log.Debug("Could not determine process elevation", "error", err)
	}
	if mismatch != elevation.None {
		a.log.Error("Runtime is unreachable across a privilege boundary", "mismatch", mismatch.String())
		if a.lease != nil || a.overlay != 0 {
			a.teardownLocked("privilege mismatch")
		}
		a.setStatusLocked(StateError, status.FromMismatch(mismatch))
		return
	}

	if a.lease == nil {
		a.setStatusLocked(StateConnecting, status.Error(status.DetailConnecting))

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ConnectTimeout)
		lease, err := a.deps.Session.Acquire(ctx)
		cancel()
		if err != nil {
			detail := status.DetailInitFailed
			if errors.Is(err, session.ErrInitTimeout) {
				detail = status.DetailTimeout
			}
			a.log.Error("Failed to start OpenVR session", "error", err, "timeout", a.cfg.ConnectTimeout)
			a.setStatusLocked(StateError, status.Error(detail))
			return
		}
		a.lease = lease
	}

	a.resetOverlayLocked()
	a.setStatusLocked(StateConnected, status.OK)
	a.log.Info("Connected to OpenVR")

	if err := a.refreshLocked(); err != nil {
		a.log.Error("Initial device enumeration failed", "error", err)
	}
}

// resetOverlayLocked destroys any stale overlay and registers a fresh one.
// A missing overlay only disables event polling.
func (a *Adapter) resetOverlayLocked() {
	a.destroyOverlayLocked()

	h, err := a.deps.Runtime.CreateOverlay(a.cfg.OverlayKey, a.cfg.OverlayName)
	if err != nil {
		a.log.Warn("Failed to create event overlay, device changes will not be noticed", "error", err)
		return
	}
	a.overlay = h
}

// destroyOverlayLocked forgets the overlay handle before the native call, so a
// failing or panicking runtime never leaves a stale handle behind.
func (a *Adapter) destroyOverlayLocked() {
	if a.overlay == 0 {
		return
	}
	h := a.overlay
	a.overlay = 0

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Destroying overlay panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := a.deps.Runtime.DestroyOverlay(h); err != nil {
		a.log.Debug("Destroying overlay failed", "error", err)
	}
}

func (a *Adapter) releaseLeaseLocked(reason string) {
	if a.lease == nil {
		return
	}
	lease := a.lease
	a.lease = nil

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Closing OpenVR session panicked", "panic", fmt.Sprint(r))
		}
	}()
	lease.Release()
	a.log.Info("OpenVR session closed", "reason", reason)
}

// teardownLocked drops the overlay and the session lease and marks every
// joint untracked. The status is left to the caller.
func (a *Adapter) teardownLocked(reason string) {
	a.withHostLock(func() {
		a.destroyOverlayLocked()
		a.releaseLeaseLocked(reason)
		a.markAllUntrackedLocked()
	})
}

// withHostLock runs fn holding the host update lock, releasing it even if fn panics.
func (a *Adapter) withHostLock(fn func()) {
	l := a.deps.Host.UpdateLock()
	l.Lock()
	defer l.Unlock()
	fn()
}

// Shutdown tears the session down. It is safe to call repeatedly and from any
// goroutine.
func (a *Adapter) Shutdown() {
	defer a.guard("Shutdown")

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelQuitLocked()
	a.shutdownLocked("host request")
}

func (a *Adapter) shutdownLocked(reason string) {
	defer a.deps.Host.RefreshStatus()
	defer a.setStatusLocked(StateUninitialized, status.Error(status.DetailShutdown))

	a.teardownLocked(reason)
}
