package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecordingUpload uploads one staged meeting recording.
	TaskRecordingUpload = "recordings:upload"
	// TaskRecordingSweep enqueues an upload for every staged recording.
	TaskRecordingSweep = "recordings:sweep"
)

// UploadMaxRetry bounds upload attempts for a single recording.
const UploadMaxRetry = 5

// RecordingUploadPayload identifies the staged recording to upload.
type RecordingUploadPayload struct {
	MeetingID string `json:"meeting_id"`
}

// NewRecordingUploadTask builds an upload task. The task id is derived from the
// meeting so a recording is queued at most once.
func NewRecordingUploadTask(meetingID string) (*asynq.Task, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return nil, errors.New("jobs: meeting id required")
	}
	body, err := json.Marshal(RecordingUploadPayload{MeetingID: meetingID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordingUpload, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(UploadMaxRetry),
		asynq.TaskID(uploadTaskID(meetingID)),
	), nil
}

// NewRecordingSweepTask builds the periodic sweep task.
func NewRecordingSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRecordingSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

func uploadTaskID(meetingID string) string {
	return "upload:" + meetingID
}
