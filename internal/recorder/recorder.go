// Package recorder drives a single audio capture session from idle through
// recording and pause to a finalized artifact.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/niveshya/leadops/internal/platform/clock"
)

// Status is the state of the recorder.
type Status string

// Recorder states.
const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// Defaults applied by New.
const (
	DefaultMIMEType  = "audio/webm"
	DefaultTimeslice = time.Second
)

var (
	// ErrInvalidTransition is returned for an operation not allowed in the current state.
	ErrInvalidTransition = errors.New("recorder: invalid transition")
	// ErrAcquisitionPending is returned by Start while a previous Start awaits the device.
	ErrAcquisitionPending = errors.New("recorder: device acquisition pending")
	// ErrCanceled is returned by a Start or Stop overtaken by Reset.
	ErrCanceled = errors.New("recorder: canceled by reset")
)

// Options configures a Recorder.
type Options struct {
	MIMEType  string
	Timeslice time.Duration
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Snapshot is a consistent read of the recorder state.
type Snapshot struct {
	Status   Status
	Duration time.Duration
	Err      error
	Artifact *Artifact
	Handle   *Handle
}

// Recorder owns one capture session at a time. It is safe for concurrent use.
type Recorder struct {
	device    Device
	mimeType  string
	timeslice time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	status    Status
	gen       uint64
	acquiring bool
	stopping  bool
	stream    Stream
	chunks    [][]byte
	err       error

	startedAt   time.Time
	pauseStart  time.Time
	pausedTotal time.Duration
	final       time.Duration
	lastSeen    time.Duration

	artifact *Artifact
	handle   *Handle
}

// New constructs a Recorder over device.
func New(device Device, opts Options) *Recorder {
	if opts.MIMEType == "" {
		opts.MIMEType = DefaultMIMEType
	}
	if opts.Timeslice <= 0 {
		opts.Timeslice = DefaultTimeslice
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		device:    device,
		mimeType:  opts.MIMEType,
		timeslice: opts.Timeslice,
		clock:     opts.Clock,
		logger:    opts.Logger,
		status:    StatusIdle,
	}
}

// Start acquires the device and begins recording. It is valid from idle, stopped
// and error. A device failure moves the recorder to error and is also returned.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.acquiring {
		r.mu.Unlock()
		return ErrAcquisitionPending
	}
	switch r.status {
	case StatusIdle, StatusStopped, StatusError:
	default:
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, status)
	}
	r.gen++
	gen := r.gen
	r.acquiring = true
	r.clearSessionLocked()
	r.mu.Unlock()

	stream, err := r.device.Acquire(ctx)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return ErrCanceled
	}
	r.acquiring = false
	if err != nil {
		r.status = StatusError
		r.err = fmt.Errorf("recorder: acquire device: %w", err)
		failure := r.err
		r.mu.Unlock()
		r.logger.Warn("device acquisition failed", slog.Any("error", err))
		return failure
	}
	r.stream = stream
	r.status = StatusRecording
	r.startedAt = r.clock.Now()
	r.mu.Unlock()

	if err := stream.Start(r.timeslice, Handlers{OnChunk: r.chunkHandler(gen), OnError: r.errorHandler(gen)}); err != nil {
		err = fmt.Errorf("recorder: start capture: %w", err)
		r.fail(gen, err)
		return err
	}
	r.logger.Debug("recording started", slog.String("mime_type", r.mimeType))
	return nil
}

// Pause suspends buffering. It is valid only while recording.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording || r.stopping {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, r.status)
	}
	if err := r.stream.Pause(); err != nil {
		return r.failLocked(fmt.Errorf("recorder: pause: %w", err))
	}
	r.pauseStart = r.clock.Now()
	r.status = StatusPaused
	return nil
}

// Resume continues buffering. It is valid only while paused.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPaused || r.stopping {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, r.status)
	}
	if err := r.stream.Resume(); err != nil {
		return r.failLocked(fmt.Errorf("recorder: resume: %w", err))
	}
	if pause := r.clock.Now().Sub(r.pauseStart); pause > 0 {
		r.pausedTotal += pause
	}
	r.pauseStart = time.Time{}
	r.status = StatusRecording
	return nil
}

// Stop flushes the final chunk, releases the device and returns the artifact.
// It is valid while recording or paused.
func (r *Recorder) Stop() (Artifact, error) {
	r.mu.Lock()
	if (r.status != StatusRecording && r.status != StatusPaused) || r.stopping {
		status := r.status
		r.mu.Unlock()
		return Artifact{}, fmt.Errorf("%w: stop from %s", ErrInvalidTransition, status)
	}
	gen := r.gen
	r.final = r.durationLocked()
	r.stopping = true
	stream := r.stream
	r.mu.Unlock()

	stopErr := stream.Stop()
	closeErr := stream.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return Artifact{}, ErrCanceled
	}
	r.stopping = false
	r.stream = nil
	if stopErr != nil {
		r.status = StatusError
		r.err = fmt.Errorf("recorder: stop capture: %w", stopErr)
		r.chunks = nil
		return Artifact{}, r.err
	}
	if closeErr != nil {
		r.logger.Warn("release device", slog.Any("error", closeErr))
	}

	artifact := &Artifact{
		Data:      bytes.Join(r.chunks, nil),
		MIMEType:  r.mimeType,
		Duration:  r.final,
		CreatedAt: r.clock.Now(),
	}
	r.chunks = nil
	r.artifact = artifact
	r.handle = newHandle()
	r.status = StatusStopped
	r.logger.Debug("recording stopped", slog.Int("bytes", len(artifact.Data)), slog.Duration("duration", artifact.Duration))
	return *artifact, nil
}

// Reset discards everything, revokes the artifact handle and returns to idle.
// It is valid from any state, including during a pending Start.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.gen++
	stream := r.stream
	r.handle.revoke()
	r.clearSessionLocked()
	r.stream = nil
	r.acquiring = false
	r.stopping = false
	r.status = StatusIdle
	r.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			r.logger.Warn("release device", slog.Any("error", err))
		}
	}
}

// Status returns the current state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Duration returns the elapsed active duration. It never decreases within a session.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durationLocked()
}

// Snapshot returns the current state, duration, error, artifact and handle.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Status:   r.status,
		Duration: r.durationLocked(),
		Err:      r.err,
		Artifact: r.artifact,
		Handle:   r.handle,
	}
}

func (r *Recorder) chunkHandler(gen uint64) func([]byte) {
	return func(data []byte) {
		if len(data) == 0 {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.gen || (r.status != StatusRecording && r.status != StatusPaused) {
			return
		}
		r.chunks = append(r.chunks, bytes.Clone(data))
	}
}

func (r *Recorder) errorHandler(gen uint64) func(error) {
	return func(err error) {
		r.fail(gen, fmt.Errorf("recorder: device: %w", err))
	}
}

// fail moves a live session to error and releases its stream.
func (r *Recorder) fail(gen uint64, err error) {
	r.mu.Lock()
	if gen != r.gen || r.stopping || (r.status != StatusRecording && r.status != StatusPaused) {
		r.mu.Unlock()
		return
	}
	stream := r.stream
	r.stream = nil
	r.status = StatusError
	r.err = err
	r.chunks = nil
	r.mu.Unlock()

	r.logger.Warn("recording failed", slog.Any("error", err))
	if stream != nil {
		_ = stream.Close()
	}
}

func (r *Recorder) failLocked(err error) error {
	stream := r.stream
	r.stream = nil
	r.status = StatusError
	r.err = err
	r.chunks = nil
	if stream != nil {
		go func() { _ = stream.Close() }()
	}
	return err
}

func (r *Recorder) clearSessionLocked() {
	r.chunks = nil
	r.err = nil
	r.artifact = nil
	r.handle = nil
	r.startedAt = time.Time{}
	r.pauseStart = time.Time{}
	r.pausedTotal = 0
	r.final = 0
	r.lastSeen = 0
}

func (r *Recorder) durationLocked() time.Duration {
	var d time.Duration
	switch {
	case r.status == StatusStopped || r.stopping:
		return r.final
	case r.status == StatusRecording:
		d = r.clock.Now().Sub(r.startedAt) - r.pausedTotal
	case r.status == StatusPaused:
		d = r.pauseStart.Sub(r.startedAt) - r.pausedTotal
	default:
		return 0
	}
	if d < r.lastSeen {
		d = r.lastSeen
	}
	r.lastSeen = d
	return d
}
