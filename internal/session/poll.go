package session

import (
	"context"
	"sync"
	"time"
)

// StartPolling refreshes the current group every PollInterval in a
// background goroutine. Refresh errors are logged and retried on the next
// tick. The loop ends when ctx is cancelled, when stop is called, or when
// the coordinator no longer has a networked group. stop blocks until the
// goroutine has exited and is safe to call more than once.
func (c *Coordinator) StartPolling(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.poll(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func (c *Coordinator) poll(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		s := c.Current()
		if s == nil || s.Group.Kind.IsLocal() {
			c.logger.Debug("Polling stopped, no networked group")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := time.Now()
		if err := c.RefreshMembers(ctx, s.Group.ID); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Member refresh failed", "group_id", s.Group.ID, "error", err)
			continue
		}
		c.logger.Debug("Members refreshed", "group_id", s.Group.ID, "duration_ms", time.Since(start).Milliseconds())
	}
}
