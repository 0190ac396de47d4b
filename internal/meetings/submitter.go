package meetings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/niveshya/leadops/internal/recorder"
	"github.com/niveshya/leadops/internal/session"
	"github.com/niveshya/leadops/internal/shared"
	"github.com/niveshya/leadops/internal/staging"
)

// Uploader sends a recording to the server.
type Uploader interface {
	UploadMeetingAudio(ctx context.Context, meetingID, filename, mimeType string, data io.Reader) (UploadResult, error)
}

// Submitter moves finalized recordings through local staging to the server.
// A recording stays staged until the server has acknowledged it.
type Submitter struct {
	store  staging.Store
	api    Uploader
	logger *slog.Logger
}

// NewSubmitter constructs a Submitter.
func NewSubmitter(store staging.Store, api Uploader, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Submitter{store: store, api: api, logger: logger}
}

// Stage persists artifact as the pending recording for meetingID, replacing any
// previously staged take.
func (s *Submitter) Stage(ctx context.Context, meetingID string, artifact recorder.Artifact) (staging.Metadata, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return staging.Metadata{}, shared.NewFieldError(shared.ErrValidation, "meeting_id", "")
	}
	createdAt := artifact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	meta, err := s.store.Save(ctx, staging.Recording{
		Key:       meetingID,
		MeetingID: meetingID,
		Filename:  RecordingFilename(meetingID, artifact.MIMEType, createdAt),
		MIMEType:  artifact.MIMEType,
		Data:      artifact.Data,
		Duration:  artifact.Duration,
		CreatedAt: createdAt,
	})
	if err != nil {
		return staging.Metadata{}, fmt.Errorf("meetings: stage %s: %w", meetingID, err)
	}
	s.logger.Info("recording staged", slog.String("meeting_id", meetingID), slog.Int64("bytes", meta.Size))
	return meta, nil
}

// Upload sends the staged recording for meetingID and removes it from staging on success.
func (s *Submitter) Upload(ctx context.Context, meetingID string) (UploadResult, error) {
	rec, err := s.store.Get(ctx, meetingID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("meetings: load staged %s: %w", meetingID, err)
	}
	result, err := s.api.UploadMeetingAudio(ctx, rec.MeetingID, rec.Filename, rec.MIMEType, bytes.NewReader(rec.Data))
	if err != nil {
		s.logger.Warn("upload failed, recording kept",
			slog.String("meeting_id", meetingID),
			slog.Any("error", err),
		)
		return UploadResult{}, fmt.Errorf("meetings: upload %s: %w", meetingID, err)
	}
	if err := s.store.Delete(ctx, meetingID); err != nil {
		s.logger.Warn("remove uploaded recording", slog.String("meeting_id", meetingID), slog.Any("error", err))
	}
	s.logger.Info("recording uploaded",
		slog.String("meeting_id", meetingID),
		slog.String("audio_filename", result.AudioFilename),
	)
	return result, nil
}

// Discard drops the staged recording for meetingID.
func (s *Submitter) Discard(ctx context.Context, meetingID string) error {
	return s.store.Delete(ctx, meetingID)
}

// Pending lists staged recordings awaiting upload, oldest first.
func (s *Submitter) Pending(ctx context.Context) ([]staging.Metadata, error) {
	return s.store.List(ctx)
}

// StatusReporter exposes the recorder state.
type StatusReporter interface {
	Status() recorder.Status
}

// LogoutVeto returns a hook that cancels logout while rec is capturing.
func LogoutVeto(rec StatusReporter) session.LogoutHook {
	return func(ev *session.LogoutEvent) {
		switch rec.Status() {
		case recorder.StatusRecording, recorder.StatusPaused:
			ev.Cancel("a recording is in progress; stop or discard it first")
		}
	}
}

// RecordingFilename names an upload after its meeting and capture time.
func RecordingFilename(meetingID, mimeType string, createdAt time.Time) string {
	return fmt.Sprintf("meeting-%s-%s%s", meetingID, createdAt.UTC().Format("20060102T150405Z"), ExtensionFor(mimeType))
}
