// Package staging keeps finalized recordings on local disk until they are
// uploaded, so a crash or dropped connection does not lose captured audio.
package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niveshya/leadops/internal/shared"
)

var (
	// ErrNotFound is returned when no recording is staged under a key. It matches
	// shared.ErrNotFound, but a server not-found does not match it.
	ErrNotFound = fmt.Errorf("staging: %w", shared.ErrNotFound)
	// ErrCorrupt is returned when stored bytes no longer match their checksum.
	ErrCorrupt = errors.New("staging: checksum mismatch")
)

// Recording is a staged audio artifact.
type Recording struct {
	Key       string
	MeetingID string
	Filename  string
	MIMEType  string
	Data      []byte
	Duration  time.Duration
	CreatedAt time.Time
}

// Metadata describes a staged recording without its payload.
type Metadata struct {
	Key       string
	MeetingID string
	Filename  string
	MIMEType  string
	Size      int64
	Checksum  string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store persists staged recordings.
type Store interface {
	Save(ctx context.Context, rec Recording) (Metadata, error)
	Get(ctx context.Context, key string) (Recording, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Metadata, error)
	Close() error
}
