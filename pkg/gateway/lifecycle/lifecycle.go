// Package lifecycle holds the shared draining flag consulted by the
// readiness probe, session creation, and the stream upgrade. Shutdown
// flips it before the HTTP listener stops so new calls are refused
// while in-flight streams wind down.
package lifecycle

import "sync/atomic"

// Lifecycle reports whether the gateway is draining. The zero value is
// ready to use and a nil receiver reads as not draining.
type Lifecycle struct {
	draining atomic.Bool
}

// SetDraining flips the draining flag. Set once on shutdown; handlers
// observing it refuse new sessions and stream upgrades.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

// IsDraining reports whether shutdown has begun.
func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
