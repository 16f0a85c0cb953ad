// Package elevation decides whether the adapter and the runtime server run at
// different privilege levels, which makes the runtime unreachable.
package elevation

// Mismatch classifies the privilege relationship between the two processes.
type Mismatch int

const (
	// None means both processes share a privilege level.
	None Mismatch = iota
	// SelfElevated means this process is elevated and the runtime is not.
	SelfElevated
	// RuntimeElevated means the runtime is elevated and this process is not.
	RuntimeElevated
)

func (m Mismatch) String() string {
	switch m {
	case SelfElevated:
		return "self-elevated"
	case RuntimeElevated:
		return "runtime-elevated"
	default:
		return "none"
	}
}

// Inspector reports process elevation.
type Inspector interface {
	SelfElevated() (bool, error)
	// RuntimeElevated reports the runtime server's elevation. found is false
	// when the server is not running.
	RuntimeElevated() (elevated bool, found bool, err error)
}

// Classify compares both processes. Inspection errors and a missing runtime
// process never produce a mismatch; the session attempt decides instead.
func Classify(in Inspector) (Mismatch, error) {
	self, err := in.SelfElevated()
	if err != nil {
		return None, err
	}
	runtime, found, err := in.RuntimeElevated()
	if err != nil || !found {
		return None, err
	}

	switch {
	case self && !runtime:
		return SelfElevated, nil
	case runtime && !self:
		return RuntimeElevated, nil
	default:
		return None, nil
	}
}

// Static is an Inspector with fixed answers.
type Static struct {
	Self           bool
	Runtime        bool
	RuntimeMissing bool
}

func (s Static) SelfElevated() (bool, error) { return s.Self, nil }

func (s Static) RuntimeElevated() (bool, bool, error) {
	return s.Runtime, !s.RuntimeMissing, nil
}
