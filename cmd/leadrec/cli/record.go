package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/niveshya/leadops/internal/recorder"
)

// RecordOptions configures the record command.
type RecordOptions struct {
	MeetingID string
	// Open returns the encoded audio source, such as a file, stdin or an encoder's stdout.
	Open         func(ctx context.Context) (io.ReadCloser, error)
	MIMEType     string
	Timeslice    time.Duration
	PollInterval time.Duration
	// MaxDuration stops the recording after this much wall time. Zero means no limit.
	MaxDuration time.Duration
	// Upload hands the staged recording to the worker, or uploads inline, once stopped.
	Upload bool
}

// Record captures audio until the source ends, ctx is canceled or MaxDuration
// passes, then stages the artifact for upload.
func (e *Env) Record(ctx context.Context, opts RecordOptions) int {
	if opts.MeetingID == "" {
		return e.usagef("record", "--meeting is required")
	}
	if opts.Open == nil {
		return e.usagef("record", "no audio source")
	}

	ended := make(chan struct{})
	var endOnce sync.Once
	device := recorder.ReaderDevice{
		Clock: e.clock(),
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			src, err := opts.Open(ctx)
			if err != nil {
				return nil, err
			}
			return &endSignal{ReadCloser: src, ended: func() { endOnce.Do(func() { close(ended) }) }}, nil
		},
	}
	rec := recorder.New(device, recorder.Options{
		MIMEType:  opts.MIMEType,
		Timeslice: opts.Timeslice,
		Clock:     e.clock(),
	})

	if err := rec.Start(ctx); err != nil {
		return e.failf("record", err)
	}

	pollCtx, stopPoll := context.WithCancel(context.Background())
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		_ = recorder.Poll(pollCtx, rec, opts.PollInterval, func(s recorder.Snapshot) {
			fmt.Fprintf(e.stderr(), "\r%-9s %s", s.Status, formatElapsed(s.Duration))
		})
	}()

	var limit <-chan time.Time
	if opts.MaxDuration > 0 {
		ticker := e.clock().NewTicker(opts.MaxDuration)
		defer ticker.Stop()
		limit = ticker.C
	}
	select {
	case <-ctx.Done():
	case <-ended:
	case <-limit:
	}

	artifact, stopErr := rec.Stop()
	stopPoll()
	<-polled
	fmt.Fprintln(e.stderr())
	if stopErr != nil {
		if snap := rec.Snapshot(); snap.Err != nil {
			stopErr = snap.Err
		}
		return e.failf("record", stopErr)
	}
	if artifact.Size() == 0 {
		fmt.Fprintln(e.stderr(), "record: no audio captured, nothing staged")
		return ExitFailure
	}

	// The capture context may already be canceled by the interrupt that ended it.
	stageCtx := context.WithoutCancel(ctx)
	meta, err := e.Recordings.Stage(stageCtx, opts.MeetingID, artifact)
	if err != nil {
		return e.failf("record", err)
	}
	fmt.Fprintf(e.stdout(), "staged %s (%d bytes, %s)\n", meta.Filename, meta.Size, formatElapsed(meta.Duration))
	if !opts.Upload {
		return ExitOK
	}
	return e.Upload(stageCtx, UploadOptions{MeetingIDs: []string{opts.MeetingID}})
}

// endSignal reports when the wrapped source is exhausted or fails.
type endSignal struct {
	io.ReadCloser
	ended func()
}

func (s *endSignal) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if err != nil {
		s.ended()
	}
	return n, err
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
