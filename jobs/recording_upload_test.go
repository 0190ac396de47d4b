package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/niveshya/leadops/internal/jobs"
	"github.com/niveshya/leadops/internal/meetings"
	"github.com/niveshya/leadops/internal/shared"
	"github.com/niveshya/leadops/internal/staging"
)

type stubUploader struct {
	err   error
	calls []string
}

func (s *stubUploader) Upload(ctx context.Context, meetingID string) (meetings.UploadResult, error) {
	s.calls = append(s.calls, meetingID)
	if s.err != nil {
		return meetings.UploadResult{}, s.err
	}
	return meetings.UploadResult{MeetingID: meetingID, AudioFilename: "a.webm", FileSize: 128}, nil
}

func uploadTask(t *testing.T, meetingID string) *asynq.Task {
	t.Helper()
	task, err := NewRecordingUploadTask(meetingID)
	require.NoError(t, err)
	return task
}

func TestNewRecordingUploadTask(t *testing.T) {
	task := uploadTask(t, " m-1 ")
	assert.Equal(t, TaskRecordingUpload, task.Type())
	var payload RecordingUploadPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "m-1", payload.MeetingID)

	_, err := NewRecordingUploadTask("  ")
	assert.Error(t, err)
}

func TestRecordingUploadJobOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "success"},
		{name: "already uploaded", err: fmt.Errorf("meetings: load staged m-1: %w", staging.ErrNotFound)},
		{name: "server not found", err: fmt.Errorf("meetings: upload m-1: %w", shared.ErrNotFound), wantErr: true},
		{name: "corrupt", err: staging.ErrCorrupt, wantErr: true, skipRetry: true},
		{name: "expired token", err: fmt.Errorf("upload: %w", shared.ErrUnauthenticated), wantErr: true, skipRetry: true},
		{name: "no permission", err: shared.ErrUnauthorized, wantErr: true, skipRetry: true},
		{name: "network", err: errors.New("connection refused"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up := &stubUploader{err: tc.err}
			job := NewRecordingUploadJob(up, nil, nil)

			err := job.Handle(context.Background(), uploadTask(t, "m-1"))
			assert.Equal(t, []string{"m-1"}, up.calls)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestRecordingUploadJobRejectsBadPayload(t *testing.T) {
	up := &stubUploader{}
	job := NewRecordingUploadJob(up, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskRecordingUpload, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = job.Handle(context.Background(), asynq.NewTask(TaskRecordingUpload, []byte(`{"meeting_id":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, up.calls)

	var unconfigured *RecordingUploadJob
	assert.Error(t, unconfigured.Handle(context.Background(), uploadTask(t, "m-1")))
}

func TestRecordingUploadJobRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewRecordingUploadJob(&stubUploader{}, nil, metrics)

	require.NoError(t, job.Handle(context.Background(), uploadTask(t, "m-1")))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["leadops_jobs_total"])
	assert.Equal(t, float64(128), values["leadops_recording_upload_bytes_total"])
}

type stubPending struct {
	items []staging.Metadata
	err   error
}

func (s stubPending) Pending(ctx context.Context) ([]staging.Metadata, error) {
	return s.items, s.err
}

type stubEnqueuer struct {
	queued []string
	fail   map[string]bool
	dupes  map[string]bool
}

func (s *stubEnqueuer) EnqueueRecordingUpload(ctx context.Context, meetingID string) (*asynq.TaskInfo, error) {
	if s.fail[meetingID] {
		return nil, errors.New("redis down")
	}
	if s.dupes[meetingID] {
		return nil, nil
	}
	s.queued = append(s.queued, meetingID)
	return &asynq.TaskInfo{ID: uploadTaskID(meetingID)}, nil
}

func TestRecordingSweepEnqueuesEveryStagedRecording(t *testing.T) {
	enq := &stubEnqueuer{dupes: map[string]bool{"m-2": true}}
	job := &RecordingSweepJob{
		Pending:  stubPending{items: []staging.Metadata{{MeetingID: "m-1"}, {MeetingID: "m-2"}, {MeetingID: "m-3"}}},
		Enqueuer: enq,
	}

	require.NoError(t, job.Handle(context.Background(), NewRecordingSweepTask()))
	assert.Equal(t, []string{"m-1", "m-3"}, enq.queued)
}

func TestRecordingSweepReportsFailures(t *testing.T) {
	enq := &stubEnqueuer{fail: map[string]bool{"m-1": true}}
	job := &RecordingSweepJob{
		Pending:  stubPending{items: []staging.Metadata{{MeetingID: "m-1"}, {MeetingID: "m-2"}}},
		Enqueuer: enq,
	}
	err := job.Handle(context.Background(), NewRecordingSweepTask())
	require.ErrorContains(t, err, "m-1")
	assert.Equal(t, []string{"m-2"}, enq.queued)

	job.Pending = stubPending{err: errors.New("disk full")}
	assert.ErrorContains(t, job.Handle(context.Background(), NewRecordingSweepTask()), "disk full")

	assert.Error(t, (&RecordingSweepJob{}).Handle(context.Background(), NewRecordingSweepTask()))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}
