package intake

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextExtractor reads the upload as UTF-8, dropping a leading BOM.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

func (e *TextExtractor) Name() string { return "text" }

func (e *TextExtractor) SupportedTypes() []string { return []string{"text/plain"} }

// Only .txt is matched by name; other names fall through to the declared type.
func (e *TextExtractor) SupportedExtensions() []string { return []string{".txt"} }

func (e *TextExtractor) Extract(ctx context.Context, f File) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if f.Open == nil {
		return "", &ReadError{Name: f.Name, Err: fmt.Errorf("no content")}
	}
	rc, err := f.Open()
	if err != nil {
		return "", &ReadError{Name: f.Name, Err: err}
	}
	defer rc.Close()

	b, err := io.ReadAll(transform.NewReader(rc, unicode.UTF8BOM.NewDecoder()))
	if err != nil {
		return "", &ReadError{Name: f.Name, Err: err}
	}
	return string(b), nil
}

// PDFExtractor does not parse PDFs; it returns a fixed sample text naming the file.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) SupportedTypes() []string { return []string{"application/pdf"} }

func (e *PDFExtractor) SupportedExtensions() []string { return nil }

func (e *PDFExtractor) Extract(_ context.Context, f File) (string, error) {
	return fmt.Sprintf("[PDF Content Extracted from %s]\n\n"+
		"This is a sample text content that would be extracted from your PDF file. "+
		"In a real implementation, this would contain the actual text content from the PDF document. "+
		"The content includes meeting discussions, decisions made, action items, and other important information that was captured during the session.",
		f.Name), nil
}

// WordExtractor covers Word documents and anything else that passed validation.
// Like PDFExtractor it returns fixed sample text.
type WordExtractor struct{}

func NewWordExtractor() *WordExtractor { return &WordExtractor{} }

func (e *WordExtractor) Name() string { return "document" }

func (e *WordExtractor) SupportedTypes() []string {
	return []string{
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

func (e *WordExtractor) SupportedExtensions() []string { return nil }

func (e *WordExtractor) Extract(_ context.Context, f File) (string, error) {
	return fmt.Sprintf("[Document Content from %s]\n\n"+
		"This represents the extracted text content from your document file. "+
		"In a production environment, this would contain the actual text parsed from Word documents or other formats. "+
		"The content typically includes meeting minutes, project notes, call transcripts, and other business communications that need to be summarized.",
		f.Name), nil
}
