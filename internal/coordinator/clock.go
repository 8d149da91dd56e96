package coordinator

import (
	"context"
	"time"
)

// Clock abstracts the inter-poll pause so the loop can run in tests without
// wall-clock delays. Pause returns ctx.Err() when the context is cancelled
// before the duration elapses.
type Clock interface {
	Pause(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
