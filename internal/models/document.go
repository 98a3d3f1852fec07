package models

import (
	"strings"
	"time"
)

// UploadedDocument is a validated, extracted upload. It is never mutated after creation.
type UploadedDocument struct {
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	SizeBytes    int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	DetectedMIME string    `json:"detected_mime,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// WordCount counts words the naive way: single-space separators, so "" counts as 1.
func (d *UploadedDocument) WordCount() int {
	if d == nil {
		return 0
	}
	return len(strings.Split(d.Content, " "))
}

// SizeKB is the size in kilobytes rounded to one decimal, as shown on the intake screen.
func (d *UploadedDocument) SizeKB() float64 {
	if d == nil {
		return 0
	}
	return float64(int64(float64(d.SizeBytes)/1024*10+0.5)) / 10
}
