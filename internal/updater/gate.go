package updater

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between automatic checks.
const DefaultCooldown = 60 * time.Second

// Gate suppresses automatic checks that arrive within the cooldown window.
// The window is anchored to attempt start: the timestamp is recorded the
// moment an attempt is admitted, before the check runs, so two rapid triggers
// cannot both pass. A failed check does not rewind it. State is process
// lifetime only.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
}

// NewGate returns a gate with the given cooldown; zero means DefaultCooldown.
func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{cooldown: cooldown}
}

// ShouldRun reports whether a check triggered at now may proceed. Forced
// attempts always pass. Any admitted attempt records now as the new anchor.
func (g *Gate) ShouldRun(force bool, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !force && !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	return true
}
