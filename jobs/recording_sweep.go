package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/niveshya/leadops/internal/jobs"
	"github.com/niveshya/leadops/internal/staging"
)

// PendingLister lists staged recordings.
type PendingLister interface {
	Pending(ctx context.Context) ([]staging.Metadata, error)
}

// UploadEnqueuer queues an upload for one meeting.
type UploadEnqueuer interface {
	EnqueueRecordingUpload(ctx context.Context, meetingID string) (*asynq.TaskInfo, error)
}

// RecordingSweepJob re-queues uploads for recordings left in staging, such as
// after a restart or an exhausted retry budget.
type RecordingSweepJob struct {
	Pending  PendingLister
	Enqueuer UploadEnqueuer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle enqueues every staged recording. It fails if any enqueue fails.
func (j *RecordingSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pending == nil || j.Enqueuer == nil {
		return errors.New("recording sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskRecordingSweep)

	pending, err := j.Pending.Pending(ctx)
	if err != nil {
		return tracker.End(fmt.Errorf("recording sweep: list staged: %w", err))
	}
	var errs []error
	queued := 0
	for _, meta := range pending {
		info, err := j.Enqueuer.EnqueueRecordingUpload(ctx, meta.MeetingID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", meta.MeetingID, err))
			continue
		}
		if info != nil {
			queued++
		}
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("recording sweep", slog.Int("staged", len(pending)), slog.Int("queued", queued))
	return tracker.End(errors.Join(errs...))
}
