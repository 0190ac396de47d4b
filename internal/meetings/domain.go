// Package meetings accepts recorded meeting audio on the server and moves
// recordings from the operator's machine to the server on the client.
package meetings

import "time"

// ProcessingStatus tracks downstream handling of an uploaded recording.
type ProcessingStatus string

// Processing states.
const (
	ProcessingNotStarted ProcessingStatus = "not_started"
	ProcessingInProgress ProcessingStatus = "in_progress"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// DefaultMaxAudioBytes bounds a single upload.
const DefaultMaxAudioBytes int64 = 200 << 20

// AudioFormField is the multipart field carrying the recording.
const AudioFormField = "audio_file"

const uploadedMessage = "Audio recording uploaded successfully"

// AudioRecording is the stored audio attached to a meeting.
type AudioRecording struct {
	MeetingID        string           `json:"meeting_id"`
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"original_filename"`
	MIMEType         string           `json:"mime_type"`
	FileSize         int64            `json:"file_size"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	UploadedBy       string           `json:"uploaded_by,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
}

// UploadResult acknowledges an audio upload.
type UploadResult struct {
	Message          string           `json:"message"`
	MeetingID        string           `json:"meeting_id"`
	AudioFilename    string           `json:"audio_filename"`
	FileSize         int64            `json:"file_size"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
}
