// Package session owns the process-wide native runtime session.
//
// The runtime is a per-process singleton no matter how many adapters exist, so
// every adapter acquires a Lease from one Owner instead of initializing the
// runtime itself. The native session opens on the first lease and closes when
// the last lease is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jointfeed/openvr-adapter/pkg/openvr"
)

// ErrInitTimeout is returned when the runtime does not finish starting in time.
var ErrInitTimeout = errors.New("session: runtime init timed out")

// ErrInitPending is returned while an abandoned init attempt is still running.
var ErrInitPending = errors.New("session: previous runtime init still in progress")

// Owner reference-counts native session users.
type Owner struct {
	runtime openvr.Runtime
	appType openvr.ApplicationType

	mu      sync.Mutex
	open    bool
	leases  int
	pending bool
}

// NewOwner creates an owner for rt.
func NewOwner(rt openvr.Runtime, appType openvr.ApplicationType) *Owner {
	return &Owner{runtime: rt, appType: appType}
}

var (
	sharedMu sync.Mutex
	shared   = map[openvr.Runtime]*Owner{}
)

// Shared returns the process-wide owner for rt, creating it on first use.
func Shared(rt openvr.Runtime) *Owner {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if o, ok := shared[rt]; ok {
		return o
	}
	o := NewOwner(rt, openvr.ApplicationOverlay)
	shared[rt] = o
	return o
}

// Runtime returns the runtime this owner manages.
func (o *Owner) Runtime() openvr.Runtime {
	return o.runtime
}

// Active reports whether a native session is open.
func (o *Owner) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// Leases returns the number of outstanding leases.
func (o *Owner) Leases() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.leases
}

// Acquire returns a lease on an open session, starting the runtime if needed.
// Starting is bounded by ctx; when ctx ends first the attempt is abandoned and,
// should it succeed later, shut down again.
func (o *Owner) Acquire(ctx context.Context) (*Lease, error) {
	o.mu.Lock()
	if o.open {
		o.leases++
		o.mu.Unlock()
		return &Lease{owner: o}, nil
	}
	if o.pending {
		o.mu.Unlock()
		return nil, ErrInitPending
	}
	o.pending = true
	o.mu.Unlock()

	result := make(chan openvr.InitError, 1)
	go func() {
		result <- o.runtime.Init(o.appType)
	}()

	select {
	case code := <-result:
		o.mu.Lock()
		defer o.mu.Unlock()
		o.pending = false
		if code != openvr.InitErrorNone {
			return nil, fmt.Errorf("starting runtime: %w", code)
		}
		o.open = true
		o.leases++
		return &Lease{owner: o}, nil

	case <-ctx.Done():
		go o.abandon(result)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrInitTimeout
		}
		return nil, ctx.Err()
	}
}

// abandon waits out an init attempt nobody is waiting for and closes any
// session it managed to open.
func (o *Owner) abandon(result <-chan openvr.InitError) {
	code := <-result
	o.mu.Lock()
	defer o.mu.Unlock()
	if code == openvr.InitErrorNone {
		o.runtime.Shutdown()
	}
	o.pending = false
}

func (o *Owner) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.leases == 0 {
		return
	}
	o.leases--
	if o.leases == 0 && o.open {
		o.open = false
		o.runtime.Shutdown()
	}
}

// Lease is one holder's claim on the native session.
type Lease struct {
	owner *Owner
	once  sync.Once
}

// Release gives the lease back. It is safe to call more than once.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(l.owner.release)
}
