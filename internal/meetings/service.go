package meetings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/niveshya/leadops/internal/shared"
)

// AudioUpload is an incoming recording.
type AudioUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// AudioService stores meeting recordings on local disk with metadata in the repository.
type AudioService struct {
	repo     AudioRepository
	dir      string
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewAudioService constructs an AudioService writing files under dir.
func NewAudioService(repo AudioRepository, dir string, maxBytes int64, logger *slog.Logger) (*AudioService, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAudioBytes
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("meetings: create audio dir: %w", err)
	}
	return &AudioService{repo: repo, dir: dir, maxBytes: maxBytes, logger: logger, now: time.Now}, nil
}

// StoreAudio validates and persists an upload, replacing any earlier recording for the meeting.
func (s *AudioService) StoreAudio(ctx context.Context, actor shared.Principal, meetingID string, upload AudioUpload) (UploadResult, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return UploadResult{}, shared.NewFieldError(shared.ErrValidation, "meeting_id", "")
	}
	if !AllowedAudio(upload.ContentType, upload.Filename) {
		return UploadResult{}, shared.NewFieldError(shared.ErrValidation, AudioFormField, upload.ContentType)
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if _, ok := typeByExtension[ext]; !ok {
		ext = ExtensionFor(upload.ContentType)
	}
	name := uuid.NewString() + ext
	size, err := s.writeFile(name, upload.Body)
	if err != nil {
		return UploadResult{}, err
	}

	mimeType := baseType(upload.ContentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = ContentTypeFor(name)
	}
	rec := AudioRecording{
		MeetingID:        meetingID,
		Filename:         name,
		OriginalFilename: upload.Filename,
		MIMEType:         mimeType,
		FileSize:         size,
		ProcessingStatus: ProcessingNotStarted,
		UploadedBy:       actor.UserID,
		UploadedAt:       s.now().UTC(),
	}
	previous, err := s.repo.SaveAudio(ctx, rec)
	if err != nil {
		s.remove(name)
		return UploadResult{}, fmt.Errorf("meetings: save audio metadata: %w", err)
	}
	if previous != "" && previous != name {
		s.remove(previous)
	}

	s.logger.Info("meeting audio stored",
		slog.String("meeting_id", meetingID),
		slog.String("filename", name),
		slog.Int64("bytes", size),
	)
	return UploadResult{
		Message:          uploadedMessage,
		MeetingID:        meetingID,
		AudioFilename:    name,
		FileSize:         size,
		ProcessingStatus: rec.ProcessingStatus,
	}, nil
}

// OpenAudio returns the metadata and an open file for a meeting's recording.
func (s *AudioService) OpenAudio(ctx context.Context, meetingID string) (AudioRecording, *os.File, error) {
	rec, err := s.repo.GetAudio(ctx, meetingID)
	if err != nil {
		return AudioRecording{}, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, rec.Filename))
	if errors.Is(err, fs.ErrNotExist) {
		return AudioRecording{}, nil, fmt.Errorf("%w: audio file for meeting %s", shared.ErrNotFound, meetingID)
	}
	if err != nil {
		return AudioRecording{}, nil, fmt.Errorf("meetings: open audio: %w", err)
	}
	return rec, f, nil
}

func (s *AudioService) writeFile(name string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("meetings: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(body, s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return 0, shared.NewFieldError(shared.ErrValidation, AudioFormField, "too large")
		}
		return 0, fmt.Errorf("meetings: write audio: %w", err)
	}
	switch {
	case n == 0:
		return 0, shared.NewFieldError(shared.ErrValidation, AudioFormField, "empty")
	case n > s.maxBytes:
		return 0, shared.NewFieldError(shared.ErrValidation, AudioFormField, "too large")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return 0, fmt.Errorf("meetings: store audio: %w", err)
	}
	return n, nil
}

func (s *AudioService) remove(name string) {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("remove audio file", slog.String("filename", name), slog.Any("error", err))
	}
}
