package intake

import (
	"context"
	"io"
	"time"

	"aifiles/internal/logging"
	"aifiles/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

const sniffBytes = 3072

// Intake validates and extracts uploads into documents.
type Intake struct {
	registry *Registry
	now      func() time.Time
}

func New(registry *Registry) *Intake {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Intake{registry: registry, now: time.Now}
}

// Process runs validation then extraction. Errors are *ValidationError or *ReadError.
func (in *Intake) Process(ctx context.Context, f File) (*models.UploadedDocument, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}
	ex := in.registry.Resolve(f.MIMEType, f.Name)
	logging.Debugf("[intake] %s (%s, %d bytes) -> %s extractor", f.Name, f.MIMEType, f.Size, ex.Name())
	content, err := ex.Extract(ctx, f)
	if err != nil {
		return nil, err
	}
	return &models.UploadedDocument{
		Name:         f.Name,
		Content:      content,
		SizeBytes:    f.Size,
		MimeType:     f.MIMEType,
		DetectedMIME: sniff(f),
		UploadedAt:   in.now().UTC(),
	}, nil
}

// sniff reports the content-detected type; it is informational and never used to accept or refuse.
func sniff(f File) string {
	if f.Open == nil {
		return ""
	}
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	buf := make([]byte, sniffBytes)
	n, _ := io.ReadFull(rc, buf)
	if n == 0 {
		return ""
	}
	return mimetype.Detect(buf[:n]).String()
}
