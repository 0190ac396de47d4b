package recorder

import (
	"context"
	"time"
)

// Handlers receive stream callbacks. Chunks arrive in capture order.
type Handlers struct {
	OnChunk func(data []byte)
	OnError func(err error)
}

// Device grants exclusive access to an audio input.
type Device interface {
	// Acquire blocks until access is granted or denied.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an acquired audio input.
//
// Start, Pause and Resume must not invoke handlers synchronously. Stop must
// deliver every buffered byte through OnChunk before it returns. Close releases
// the device and must be safe to call more than once.
type Stream interface {
	Start(timeslice time.Duration, h Handlers) error
	Pause() error
	Resume() error
	Stop() error
	Close() error
}
