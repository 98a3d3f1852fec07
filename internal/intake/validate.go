package intake

import "strings"

const MaxFileSize = 10 * 1024 * 1024 // 10 MB

const (
	msgTooLarge        = "File size must be less than 10MB"
	msgUnsupportedType = "Please upload a TXT, PDF, or DOC file"
)

var allowedContentTypes = []string{
	"text/plain",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ValidationError carries the user-facing reason an upload was refused.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func isAllowedContentType(ct string) bool {
	ct = mediaType(ct)
	for _, allowed := range allowedContentTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// Validate applies the size rule, then the type rule; only the first failure is reported.
// Content is never inspected.
func Validate(f File) error {
	if f.Size > MaxFileSize {
		return &ValidationError{Reason: msgTooLarge}
	}
	if !isAllowedContentType(f.MIMEType) && !strings.HasSuffix(strings.ToLower(f.Name), ".txt") {
		return &ValidationError{Reason: msgUnsupportedType}
	}
	return nil
}
