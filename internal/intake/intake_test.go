package intake

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSizeBoundary(t *testing.T) {
	assert.NoError(t, Validate(File{Name: "a.txt", MIMEType: "text/plain", Size: MaxFileSize}))

	err := Validate(File{Name: "a.txt", MIMEType: "text/plain", Size: MaxFileSize + 1})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "File size must be less than 10MB", vErr.Reason)
}

func TestValidateSizeCheckedBeforeType(t *testing.T) {
	err := Validate(File{Name: "photo.png", MIMEType: "image/png", Size: MaxFileSize + 1})
	require.Error(t, err)
	assert.Equal(t, "File size must be less than 10MB", err.Error())
}

func TestValidateTypes(t *testing.T) {
	cases := []struct {
		name string
		mime string
		ok   bool
	}{
		{"notes.txt", "text/plain", true},
		{"notes.TXT", "", true},
		{"notes.txt", "application/octet-stream", true},
		{"report.pdf", "application/pdf", true},
		{"minutes.doc", "application/msword", true},
		{"minutes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"notes", "text/plain; charset=utf-8", true},
		{"photo.png", "image/png", false},
		{"data.csv", "text/csv", false},
		{"readme.md", "", false},
	}
	for _, tc := range cases {
		err := Validate(File{Name: tc.name, MIMEType: tc.mime, Size: 10})
		if tc.ok {
			assert.NoError(t, err, tc.name)
			continue
		}
		require.Error(t, err, tc.name)
		assert.Equal(t, "Please upload a TXT, PDF, or DOC file", err.Error())
	}
}

func TestRegistryResolve(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "text", r.Resolve("application/pdf", "odd.TXT").Name())
	assert.Equal(t, "text", r.Resolve("text/plain", "x.pdf").Name())
	assert.Equal(t, "pdf", r.Resolve("application/pdf", "report.pdf").Name())
	assert.Equal(t, "document", r.Resolve("application/msword", "a.doc").Name())
	assert.Equal(t, "document", r.Resolve("", "mystery.bin").Name())
}

func TestProcessTextFile(t *testing.T) {
	in := New(nil)
	content := "\xef\xbb\xbfhello world  from notes"
	doc, err := in.Process(context.Background(), FromBytes("notes.txt", "text/plain", []byte(content)))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "hello world  from notes", doc.Content)
	assert.Equal(t, int64(len(content)), doc.SizeBytes)
	assert.Equal(t, "text/plain", doc.MimeType)
	assert.True(t, strings.HasPrefix(doc.DetectedMIME, "text/plain"))
	assert.Equal(t, 5, doc.WordCount())
}

func TestProcessInvalidUTF8IsReplaced(t *testing.T) {
	doc, err := New(nil).Process(context.Background(), FromBytes("bad.txt", "text/plain", []byte("ok\xffok")))
	require.NoError(t, err)
	assert.Equal(t, "ok�ok", doc.Content)
}

func TestProcessPlaceholders(t *testing.T) {
	in := New(nil)
	pdf, err := in.Process(context.Background(), FromBytes("report.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pdf.Content, "[PDF Content Extracted from report.pdf]\n\n"))
	assert.NotContains(t, pdf.Content, "%PDF")

	doc, err := in.Process(context.Background(), FromBytes("minutes.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.Content, "[Document Content from minutes.docx]\n\n"))
	assert.NotContains(t, doc.Content, "PK")

	legacy, err := in.Process(context.Background(), FromBytes("old.doc", "application/msword", []byte("\xd0\xcf\x11\xe0legacy-bytes")))
	require.NoError(t, err)
	assert.Contains(t, legacy.Content, "old.doc")
	assert.NotContains(t, legacy.Content, "legacy-bytes")
}

func TestProcessPDFNameDeclaredAsText(t *testing.T) {
	doc, err := New(nil).Process(context.Background(), FromBytes("x.pdf", "text/plain", []byte("plain words")))
	require.NoError(t, err)
	assert.Equal(t, "plain words", doc.Content)
}

func TestProcessReadFailure(t *testing.T) {
	boom := errors.New("disk gone")
	f := File{
		Name:     "notes.txt",
		MIMEType: "text/plain",
		Size:     4,
		Open:     func() (io.ReadCloser, error) { return nil, boom },
	}
	_, err := New(nil).Process(context.Background(), f)
	var rErr *ReadError
	require.ErrorAs(t, err, &rErr)
	assert.ErrorIs(t, err, boom)
}

func TestProcessRejectsBeforeReading(t *testing.T) {
	opened := false
	f := File{
		Name:     "photo.png",
		MIMEType: "image/png",
		Size:     4,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("png!")), nil
		},
	}
	_, err := New(nil).Process(context.Background(), f)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.False(t, opened)
}
