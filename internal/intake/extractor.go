package intake

import (
	"context"
	"fmt"
	"strings"
)

// Extractor turns an accepted upload into document text.
type Extractor interface {
	Extract(ctx context.Context, f File) (string, error)
	SupportedTypes() []string
	SupportedExtensions() []string
	Name() string
}

// ReadError reports that the upload bytes could not be read.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Registry picks an extractor by extension first, then by declared type.
// Anything unmatched goes to the fallback.
type Registry struct {
	byMIME      map[string]Extractor
	byExtension map[string]Extractor
	fallback    Extractor
}

func NewRegistry(fallback Extractor) *Registry {
	return &Registry{
		byMIME:      make(map[string]Extractor),
		byExtension: make(map[string]Extractor),
		fallback:    fallback,
	}
}

// DefaultRegistry wires the text, PDF and Word extractors.
func DefaultRegistry() *Registry {
	word := NewWordExtractor()
	r := NewRegistry(word)
	r.Register(NewTextExtractor())
	r.Register(NewPDFExtractor())
	r.Register(word)
	return r
}

func (r *Registry) Register(e Extractor) {
	for _, mt := range e.SupportedTypes() {
		key := strings.ToLower(strings.TrimSpace(mt))
		if key != "" {
			r.byMIME[key] = e
		}
	}
	for _, ext := range e.SupportedExtensions() {
		key := strings.ToLower(strings.TrimSpace(ext))
		if key != "" {
			r.byExtension[key] = e
		}
	}
}

func (r *Registry) Resolve(mimeType, fileName string) Extractor {
	f := File{Name: fileName}
	if e, ok := r.byExtension[f.Extension()]; ok {
		return e
	}
	if e, ok := r.byMIME[mediaType(mimeType)]; ok {
		return e
	}
	return r.fallback
}
