// Package chime rate-limits notification sounds across all client windows.
package chime

import (
	"math"
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between permitted chimes.
const DefaultCooldown = 60 * time.Second

// Result is the outcome of a [Limiter.CheckAndRecord] call.
type Result struct {
	// Allowed reports whether the caller may play a chime now.
	Allowed bool

	// SecondsRemaining is the time until the next chime is permitted,
	// rounded to one decimal. Zero when Allowed.
	SecondsRemaining float64
}

// Limiter admits at most one chime per cooldown window. The check and the
// record are a single atomic step so concurrent callers cannot both win the
// same window. Safe for concurrent use.
type Limiter struct {
	mu            sync.Mutex
	lastAllowedAt time.Time
	cooldown      time.Duration
	now           func() time.Time
}

// New creates a [Limiter] with the given cooldown; a non-positive cooldown
// falls back to [DefaultCooldown].
func New(cooldown time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{cooldown: cooldown, now: time.Now}
}

// WithClock replaces the time source. Test hook.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// CheckAndRecord reports whether a chime is allowed right now and, if it is,
// records the admission so subsequent calls are denied until the cooldown
// elapses.
func (l *Limiter) CheckAndRecord() Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastAllowedAt)
	if l.lastAllowedAt.IsZero() || elapsed >= l.cooldown {
		l.lastAllowedAt = now
		return Result{Allowed: true}
	}

	remaining := (l.cooldown - elapsed).Seconds()
	return Result{
		Allowed:          false,
		SecondsRemaining: math.Round(remaining*10) / 10,
	}
}
