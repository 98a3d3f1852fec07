package export

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Clipboard is the host clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// ClipboardError means the text did not reach the clipboard. It is never fatal.
type ClipboardError struct {
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("copy to clipboard: %v", e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// SystemClipboard writes through the OS clipboard tools.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("no clipboard utility available")
	}
	return clipboard.WriteAll(text)
}

// Copy places text on the clipboard.
func Copy(cb Clipboard, text string) error {
	if cb == nil {
		return &ClipboardError{Err: fmt.Errorf("clipboard not configured")}
	}
	if err := cb.WriteAll(text); err != nil {
		return &ClipboardError{Err: err}
	}
	return nil
}
