package adapter

import (
	"math"
)

// SignalJoint requests a haptic pulse on the device behind joint index i.
// It only logs when disconnected or when i is out of range.
func (a *Adapter) SignalJoint(i int) {
	defer a.guard("SignalJoint")

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State() != StateConnected {
		a.log.Info("Ignoring joint signal, not connected", "joint", i)
		return
	}
	if i < 0 || i >= len(a.slots) {
		a.log.Error("Joint signal index out of range", "joint", i, "joints", len(a.slots))
		return
	}

	micros := a.cfg.HapticPulse.Microseconds()
	if micros > math.MaxUint16 {
		micros = math.MaxUint16
	}
	if micros < 0 {
		micros = 0
	}

	if err := a.deps.Runtime.TriggerHapticPulse(a.slots[i], 0, uint16(micros)); err != nil {
		a.log.Error("Haptic pulse failed", "joint", i, "slot", a.slots[i], "error", err)
	}
}
