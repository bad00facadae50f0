package engine

import (
	"context"
	"time"
)

// coordinator polls a run until its workers are done. The caller never
// joins workers directly so cancellation is seen within one interval.
type coordinator struct {
	ticker   *time.Ticker
	sup      *Supervisor
	expected int
}

func newCoordinator(interval time.Duration, sup *Supervisor, expected int) *coordinator {
	return &coordinator{
		ticker:   time.NewTicker(interval),
		sup:      sup,
		expected: expected,
	}
}

// wait blocks until every worker has finished or ctx is done.
func (c *coordinator) wait(ctx context.Context) error {
	defer c.ticker.Stop()
	for {
		if c.sup.Finished() >= c.expected {
			return nil
		}
		select {
		case <-c.ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
