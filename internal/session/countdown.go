package session

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultTickInterval is how often a running countdown re-evaluates the
	// remaining time.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultLocalCountdown is used when no capture time was scheduled.
	DefaultLocalCountdown = 10 * time.Second
)

// Remaining returns how long until target.
func Remaining(target, now time.Time) time.Duration {
	return target.Sub(now)
}

// DisplaySeconds is the whole-second value shown to the user: the ceiling
// of the remaining seconds, never below zero.
func DisplaySeconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// Countdown drives the display towards a capture instant. Every device runs
// its own Countdown against the same server timestamp, so shutters converge
// on the same wall-clock moment within the devices' clock skew.
type Countdown struct {
	Target   time.Time
	Interval time.Duration
	Now      func() time.Time
}

// NewCountdown counts down to scheduled, or to now+fallback when the group
// carries no scheduled capture time.
func NewCountdown(scheduled *time.Time, now func() time.Time, fallback time.Duration) *Countdown {
	if now == nil {
		now = time.Now
	}
	if fallback <= 0 {
		fallback = DefaultLocalCountdown
	}
	target := now().Add(fallback)
	if scheduled != nil {
		target = *scheduled
	}
	return &Countdown{Target: target, Interval: DefaultTickInterval, Now: now}
}

// Run evaluates immediately and then every Interval. onTick receives the
// display value whenever it changes; fire is called exactly once, at the
// first evaluation at or after Target, and Run returns nil. If ctx ends
// first, fire is never called and ctx.Err() is returned.
func (c *Countdown) Run(ctx context.Context, onTick func(seconds int), fire func()) error {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}

	last := -1
	evaluate := func() bool {
		rem := Remaining(c.Target, now())
		if s := DisplaySeconds(rem); s != last {
			last = s
			if onTick != nil {
				onTick(s)
			}
		}
		return rem <= 0
	}

	if evaluate() {
		fire()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if evaluate() {
				fire()
				return nil
			}
		}
	}
}
