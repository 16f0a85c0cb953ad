// Package host defines the contract between the tracking adapter and the
// skeletal-tracking application that loads it.
package host

import "sync"

// Logger is the host's logging sink.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Host is everything the adapter consumes from the application.
type Host interface {
	Logger() Logger
	// UpdateLock serializes adapter mutations against the host's own reads of
	// the joint collection. The adapter always takes it after its own lock.
	UpdateLock() sync.Locker
	// Localize returns the display string for a status key, or the key itself.
	Localize(key string) string
	// RefreshStatus asks the host to re-read status properties.
	RefreshStatus()
	// DocsLanguage is the language code used in documentation links.
	DocsLanguage() string
}

// Capabilities are the fixed feature flags the adapter reports.
type Capabilities struct {
	SelfUpdate              bool
	PhysicsOverride         bool
	PositionFilterBlocking  bool
	FlipSupported           bool
	AppOrientationSupported bool
}
