package models

import "time"

// Upload status values for files held by the summary API.
const (
	UploadPending = "pending"
	UploadReady   = "ready"
	UploadFailed  = "failed"
)

// Upload is a file received by the summary API, stored on disk until it expires.
type Upload struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	Prompt     string    `json:"prompt"`
	Status     string    `json:"status"`
	Content    string    `json:"-"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Summary is a generated summary stored by the summary API.
type Summary struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	FileName  string    `json:"file_name"`
	Prompt    string    `json:"prompt"`
	Content   string    `json:"summary"`
	Backend   string    `json:"backend"`
	CreatedAt time.Time `json:"created_at"`
}
