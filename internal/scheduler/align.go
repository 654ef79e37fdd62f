package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// NextAlignedDelay returns the time from now until the next wall-clock hour
// boundary (minute 0). A time exactly on the boundary yields a full hour.
func NextAlignedDelay(now time.Time) time.Duration {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	return top.Add(time.Hour).Sub(now)
}

// sleep waits for d on clock or until ctx is done. Non-positive durations
// return immediately without registering a timer.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
