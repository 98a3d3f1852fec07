package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "http://localhost:3001"

// RequestError is returned for any non-2xx answer from the summary API.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

type UploadResponse struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

type GenerateResponse struct {
	SummaryID string `json:"summaryId"`
}

type SummaryResponse struct {
	ID        string    `json:"id"`
	FileID    string    `json:"fileId"`
	FileName  string    `json:"fileName"`
	Prompt    string    `json:"prompt"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client talks to the summary API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	secret     string
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSharedSecret sends the X-Internal-Auth header on every call.
func WithSharedSecret(secret string) Option {
	return func(c *Client) { c.secret = secret }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadFile sends the document and the instruction as multipart fields "file" and "prompt".
func (c *Client) UploadFile(ctx context.Context, fileName, mimeType string, content io.Reader, prompt string) (*UploadResponse, error) {
	const op, failMsg = "upload", "Failed to upload file"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if err := mw.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("write prompt field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, op, failMsg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateSummary asks the API to summarize a previously uploaded file.
func (c *Client) GenerateSummary(ctx context.Context, fileID, prompt string) (*GenerateResponse, error) {
	payload, err := json.Marshal(map[string]string{"fileId": fileID, "prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate-summary", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out GenerateResponse
	if err := c.do(req, "generate", "Failed to generate summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSummary fetches a stored summary.
func (c *Client) GetSummary(ctx context.Context, summaryID string) (*SummaryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/summary/"+url.PathEscape(summaryID), nil)
	if err != nil {
		return nil, fmt.Errorf("build summary request: %w", err)
	}
	var out SummaryResponse
	if err := c.do(req, "get", "Failed to get summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, op, failMsg string, out interface{}) error {
	if c.secret != "" {
		req.Header.Set("X-Internal-Auth", c.secret)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", failMsg, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: failMsg}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
