package recorder

import (
	"context"
	"time"
)

// DefaultPollInterval is the cadence used for elapsed-time displays.
const DefaultPollInterval = 100 * time.Millisecond

// Poll calls fn with a snapshot immediately and then every interval until ctx
// is done. It returns the context error.
func Poll(ctx context.Context, r *Recorder, interval time.Duration, fn func(Snapshot)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	fn(r.Snapshot())
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(r.Snapshot())
		}
	}
}
