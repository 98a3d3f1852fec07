package intake

import (
	"bytes"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// File is an upload as the host reports it: declared name, declared type, size and a way to read it.
type File struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FromMultipart adapts a multipart form file.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes builds a File backed by an in-memory buffer.
func FromBytes(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Extension returns the lower-cased extension of the declared name.
func (f File) Extension() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// mediaType strips parameters ("; charset=utf-8") and normalizes case.
func mediaType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
