package meetings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niveshya/leadops/internal/shared"
)

// AudioRepository persists audio metadata per meeting.
type AudioRepository interface {
	// SaveAudio upserts rec and returns the filename it replaced, if any.
	SaveAudio(ctx context.Context, rec AudioRecording) (string, error)
	GetAudio(ctx context.Context, meetingID string) (AudioRecording, error)
}

// PGAudioRepository stores audio metadata in PostgreSQL.
type PGAudioRepository struct {
	pool *pgxpool.Pool
}

// NewAudioRepository constructs a PGAudioRepository.
func NewAudioRepository(pool *pgxpool.Pool) *PGAudioRepository {
	return &PGAudioRepository{pool: pool}
}

// SaveAudio upserts the recording for rec.MeetingID.
func (r *PGAudioRepository) SaveAudio(ctx context.Context, rec AudioRecording) (string, error) {
	const q = `WITH prev AS (SELECT filename FROM meeting_audio WHERE meeting_id = $1)
INSERT INTO meeting_audio (meeting_id, filename, original_filename, mime_type, file_size, processing_status, uploaded_by, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8)
ON CONFLICT (meeting_id) DO UPDATE SET
	filename = EXCLUDED.filename,
	original_filename = EXCLUDED.original_filename,
	mime_type = EXCLUDED.mime_type,
	file_size = EXCLUDED.file_size,
	processing_status = EXCLUDED.processing_status,
	uploaded_by = EXCLUDED.uploaded_by,
	uploaded_at = EXCLUDED.uploaded_at
RETURNING (SELECT filename FROM prev)`
	var previous pgtype.Text
	err := r.pool.QueryRow(ctx, q,
		rec.MeetingID, rec.Filename, rec.OriginalFilename, rec.MIMEType, rec.FileSize,
		string(rec.ProcessingStatus), rec.UploadedBy, rec.UploadedAt,
	).Scan(&previous)
	if err != nil {
		return "", err
	}
	return previous.String, nil
}

// GetAudio loads the recording metadata for a meeting.
func (r *PGAudioRepository) GetAudio(ctx context.Context, meetingID string) (AudioRecording, error) {
	const q = `SELECT meeting_id, filename, original_filename, mime_type, file_size, processing_status,
	COALESCE(uploaded_by::text, ''), uploaded_at FROM meeting_audio WHERE meeting_id = $1`
	var rec AudioRecording
	var status string
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(
		&rec.MeetingID, &rec.Filename, &rec.OriginalFilename, &rec.MIMEType, &rec.FileSize,
		&status, &rec.UploadedBy, &rec.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return AudioRecording{}, shared.ErrNotFound
	}
	if err != nil {
		return AudioRecording{}, err
	}
	rec.ProcessingStatus = ProcessingStatus(status)
	return rec, nil
}
