package schedule

import (
	"context"
	"time"
)

// Sleeper suspends the calling goroutine for a duration. It stands in
// for the blocking wait primitive of whatever runtime hosts the control
// loop, and lets tests and simulations drive time themselves.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer, honoring context cancellation.
type TimerSleeper struct{}

// Sleep implements Sleeper. A non-positive duration fires immediately,
// which still yields the goroutine.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
