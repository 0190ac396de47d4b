package recorder

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Artifact is a finalized recording. Data must not be modified.
type Artifact struct {
	Data      []byte
	MIMEType  string
	Duration  time.Duration
	CreatedAt time.Time
}

// Size returns the artifact length in bytes.
func (a Artifact) Size() int { return len(a.Data) }

// Handle refers to the artifact of a stopped session until Reset revokes it.
type Handle struct {
	id      string
	revoked atomic.Bool
}

func newHandle() *Handle {
	return &Handle{id: uuid.NewString()}
}

// ID returns the handle identifier.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Valid reports whether the handle has not been revoked.
func (h *Handle) Valid() bool {
	return h != nil && !h.revoked.Load()
}

func (h *Handle) revoke() {
	if h != nil {
		h.revoked.Store(true)
	}
}
