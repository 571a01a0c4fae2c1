package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type step struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (s *step) run() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.n, s.err
}

func (s *step) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeCaptures struct{ step }

func (f *fakeCaptures) BeginDueCaptures(context.Context) (int, error) { return f.run() }

type fakeComposer struct{ step }

func (f *fakeComposer) ComposeReady(context.Context) (int, error) { return f.run() }

type fakeExpirer struct{ step }

func (f *fakeExpirer) ExpireGroups(context.Context) (int, error) { return f.run() }

func TestSweep_RunsEveryStep(t *testing.T) {
	captures := &fakeCaptures{step{err: errors.New("db down")}}
	composer := &fakeComposer{step{n: 1}}
	expirer := &fakeExpirer{}

	New(captures, composer, expirer, time.Second, nil).Sweep(context.Background())

	if captures.count() != 1 || composer.count() != 1 || expirer.count() != 1 {
		t.Errorf("expected each step once, got %d %d %d", captures.count(), composer.count(), expirer.count())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	captures := &fakeCaptures{}
	composer := &fakeComposer{}
	expirer := &fakeExpirer{}
	s := New(captures, composer, expirer, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for captures.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not sweep")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
