package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func TestDisplaySeconds(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      int
	}{
		{5 * time.Second, 5},
		{4*time.Second + time.Millisecond, 5},
		{4 * time.Second, 4},
		{100 * time.Millisecond, 1},
		{0, 0},
		{-3 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := DisplaySeconds(tt.remaining); got != tt.want {
			t.Errorf("DisplaySeconds(%v): expected %d, got %d", tt.remaining, tt.want, got)
		}
	}
}

func TestCountdown_Converges(t *testing.T) {
	target := t0.Add(5 * time.Second)
	clock := &stepClock{t: t0, step: 250 * time.Millisecond}
	cd := &Countdown{Target: target, Interval: time.Millisecond, Now: clock.Now}

	var ticks []int
	fired := 0
	var firedAt time.Time
	err := cd.Run(context.Background(), func(s int) { ticks = append(ticks, s) }, func() {
		fired++
		firedAt = clock.t
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []int{5, 4, 3, 2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("ticks: expected %v, got %v", want, ticks)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("tick %d: expected %d, got %d", i, want[i], ticks[i])
		}
	}
	if fired != 1 {
		t.Errorf("expected fire exactly once, got %d", fired)
	}
	if firedAt.Before(target) {
		t.Errorf("fired at %v, before target %v", firedAt, target)
	}
}

func TestCountdown_PastTargetFiresImmediately(t *testing.T) {
	cd := &Countdown{Target: t0.Add(-time.Second), Interval: time.Hour, Now: fixedNow}

	var ticks []int
	fired := false
	if err := cd.Run(context.Background(), func(s int) { ticks = append(ticks, s) }, func() { fired = true }); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !fired {
		t.Fatal("expected immediate fire")
	}
	if len(ticks) != 1 || ticks[0] != 0 {
		t.Errorf("ticks: expected [0], got %v", ticks)
	}
}

func TestCountdown_Cancel(t *testing.T) {
	cd := &Countdown{Target: t0.Add(time.Minute), Interval: time.Millisecond, Now: fixedNow}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	fired := false
	err := cd.Run(ctx, nil, func() { fired = true })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if fired {
		t.Error("cancelled countdown must not fire")
	}
}

func TestNewCountdown_Fallback(t *testing.T) {
	cd := NewCountdown(nil, fixedNow, 0)
	if !cd.Target.Equal(t0.Add(DefaultLocalCountdown)) {
		t.Errorf("fallback target: expected %v, got %v", t0.Add(DefaultLocalCountdown), cd.Target)
	}

	at := t0.Add(3 * time.Second)
	if cd := NewCountdown(&at, fixedNow, time.Second); !cd.Target.Equal(at) {
		t.Errorf("scheduled target: expected %v, got %v", at, cd.Target)
	}
}
