package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/niveshya/leadops/internal/jobs"
	"github.com/niveshya/leadops/internal/meetings"
	"github.com/niveshya/leadops/internal/shared"
	"github.com/niveshya/leadops/internal/staging"
)

// RecordingUploader uploads a staged recording and clears it on success.
type RecordingUploader interface {
	Upload(ctx context.Context, meetingID string) (meetings.UploadResult, error)
}

// RecordingUploadJob processes TaskRecordingUpload tasks.
type RecordingUploadJob struct {
	Uploader RecordingUploader
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewRecordingUploadJob wires dependencies for the upload handler.
func NewRecordingUploadJob(uploader RecordingUploader, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecordingUploadJob {
	return &RecordingUploadJob{Uploader: uploader, Logger: logger, Metrics: metrics}
}

// Handle uploads the recording named by the task payload. Missing recordings are
// treated as done. Authentication failures and corrupt recordings are not retried.
func (j *RecordingUploadJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Uploader == nil {
		return errors.New("recording upload: handler not configured")
	}
	var payload RecordingUploadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || strings.TrimSpace(payload.MeetingID) == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskRecordingUpload)
	logger := j.logger().With(slog.String("meeting_id", payload.MeetingID))

	result, err := j.Uploader.Upload(ctx, payload.MeetingID)
	switch {
	case err == nil:
		j.Metrics.AddUploadedBytes(result.FileSize)
		logger.Info("recording uploaded", slog.String("audio_filename", result.AudioFilename))
		return tracker.End(nil)
	case errors.Is(err, staging.ErrNotFound):
		logger.Info("no staged recording, nothing to upload")
		return tracker.End(nil)
	case errors.Is(err, staging.ErrCorrupt), shared.IsAuthFailure(err):
		logger.Error("recording upload abandoned", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %w", asynq.SkipRetry, err))
	default:
		logger.Warn("recording upload failed", slog.Any("error", err))
		return tracker.End(err)
	}
}

func (j *RecordingUploadJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return j.Logger
}
