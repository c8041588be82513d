package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time source used by control loops and timed runs.
// Both clock.Clock implementations (real and mock) satisfy it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// NewClock returns a Clock backed by the system time.
func NewClock() Clock {
	return clock.New()
}

// SleepContext waits on clk for d. It returns early with the context error if ctx is done first.
func SleepContext(ctx context.Context, clk Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
