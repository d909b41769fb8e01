package core

import (
	"context"
	"time"
)

// Tick calls work every interval until ctx is cancelled. Cancellation is
// observed between units of work: an already started unit finishes, no new
// one begins. Tick returns nil on cancellation and the error of the first
// failing unit otherwise.
func Tick(ctx context.Context, interval time.Duration, work func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Both cases may be ready at once; cancellation wins.
			if ctx.Err() != nil {
				return nil
			}
			if err := work(ctx); err != nil {
				return err
			}
		}
	}
}
