package summaryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"aifiles/internal/config"
	"aifiles/internal/intake"
	"aifiles/internal/models"
	"aifiles/internal/remote"
	"aifiles/internal/service/summaries"
	"aifiles/internal/storage"
	"aifiles/internal/worker"
)

const testSecret = "0123456789abcdef-secret"

func TestRemoteClientRoundTrip(t *testing.T) {
	router := newTestRouter(t, HandlerOptions{SharedSecret: testSecret})
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := remote.NewClient(srv.URL, 5*time.Second, remote.WithSharedSecret(testSecret))
	summarizer := remote.NewSummarizer(client)
	doc := &models.UploadedDocument{
		Name:     "board.txt",
		MimeType: "text/plain",
		Content:  "The board reviewed quarterly results and approved the plan",
	}
	out, err := summarizer.Summarize(context.Background(), doc, "Summarize for executives")
	if err != nil {
		t.Fatalf("summarize through api: %v", err)
	}
	if !strings.HasPrefix(out, "# Executive Summary") || !strings.Contains(out, "This 9-word transcript") {
		t.Fatalf("unexpected summary: %q", out)
	}
}

func TestSharedSecretRequired(t *testing.T) {
	router := newTestRouter(t, HandlerOptions{SharedSecret: testSecret})

	rec := doRequest(t, router, http.MethodGet, "/api/summary/anything", nil, nil)
	assertStatus(t, rec, http.StatusUnauthorized)

	rec = doRequest(t, router, http.MethodGet, "/api/summary/anything", nil, map[string]string{internalAuthHeader: testSecret})
	assertStatus(t, rec, http.StatusNotFound)
	assertErrorMessage(t, rec, "Summary not found")

	rec = doRequest(t, router, http.MethodGet, "/healthz", nil, nil)
	assertStatus(t, rec, http.StatusOK)
}

func TestUploadValidationAndGenerateErrors(t *testing.T) {
	router := newTestRouter(t, HandlerOptions{})

	rec := uploadFile(t, router, "photo.png", "image/png", "\x89PNG", "recap")
	assertStatus(t, rec, http.StatusBadRequest)
	assertErrorMessage(t, rec, "Please upload a TXT, PDF, or DOC file")

	big := strings.Repeat("a", intake.MaxFileSize+1)
	rec = uploadFile(t, router, "big.txt", "text/plain", big, "recap")
	assertStatus(t, rec, http.StatusBadRequest)
	assertErrorMessage(t, rec, "File size must be less than 10MB")

	rec = doRequest(t, router, http.MethodPost, "/api/upload", nil, nil)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, router, http.MethodPost, "/api/generate-summary", map[string]string{"fileId": "nope", "prompt": "recap"}, nil)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, router, http.MethodPost, "/api/generate-summary", map[string]string{"prompt": "recap"}, nil)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = uploadFile(t, router, "notes.txt", "text/plain", "short note", "recap")
	assertStatus(t, rec, http.StatusCreated)
	var up struct {
		FileID   string `json:"fileId"`
		FileName string `json:"fileName"`
		Size     int64  `json:"size"`
		MimeType string `json:"mimeType"`
	}
	decodeJSON(t, rec.Body.Bytes(), &up)
	if up.FileID == "" || up.FileName != "notes.txt" || up.Size != 10 || up.MimeType != "text/plain" {
		t.Fatalf("unexpected upload response: %+v", up)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/generate-summary", map[string]string{"fileId": up.FileID, "prompt": "recap"}, nil)
	assertStatus(t, rec, http.StatusCreated)
	var gen struct {
		SummaryID string `json:"summaryId"`
	}
	decodeJSON(t, rec.Body.Bytes(), &gen)

	rec = doRequest(t, router, http.MethodGet, "/api/summary/"+gen.SummaryID, nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var sum struct {
		FileID  string `json:"fileId"`
		Summary string `json:"summary"`
		Backend string `json:"backend"`
	}
	decodeJSON(t, rec.Body.Bytes(), &sum)
	if sum.FileID != up.FileID || sum.Backend != "rules" || !strings.HasPrefix(sum.Summary, "# Transcript Summary") {
		t.Fatalf("unexpected summary response: %+v", sum)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	router := newTestRouter(t, HandlerOptions{Limiter: NewRateLimiter(time.Hour, 2)})

	for i := 0; i < 2; i++ {
		rec := doRequest(t, router, http.MethodGet, "/api/summary/x", nil, nil)
		assertStatus(t, rec, http.StatusNotFound)
	}
	rec := doRequest(t, router, http.MethodGet, "/api/summary/x", nil, nil)
	assertStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/summary/x", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)
	assertStatus(t, other, http.StatusNotFound)
}

type stubService struct {
	err error
}

func (s stubService) SaveUpload(context.Context, string, intake.File, string) (*models.Upload, error) {
	return nil, s.err
}

func (s stubService) Generate(context.Context, string, string) (*models.Summary, error) {
	return nil, s.err
}

func (s stubService) GetSummary(context.Context, string) (*models.Summary, error) {
	return nil, s.err
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{summaries.ErrExtractionFailed, http.StatusUnprocessableEntity, "Failed to read file content"},
		{summaries.ErrUploadNotReady, http.StatusConflict, summaries.ErrUploadNotReady.Error()},
		{worker.ErrDispatcherBusy, http.StatusServiceUnavailable, "Service at capacity"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		NewHandler(stubService{err: tc.err}, HandlerOptions{}).RegisterRoutes(router)

		rec := doRequest(t, router, http.MethodPost, "/api/generate-summary", map[string]string{"fileId": "f", "prompt": "p"}, nil)
		assertStatus(t, rec, tc.status)
		assertErrorMessage(t, rec, tc.msg)
	}
}

func newTestRouter(t *testing.T, opts HandlerOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{
		"sqlite3": {DSN: ":memory:"},
	}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 8})
	t.Cleanup(func() {
		dispatcher.Stop()
		db.Close()
	})
	svc := summaries.NewService(db, intake.New(nil), nil, dispatcher, summaries.Options{FileBaseDir: t.TempDir()})

	router := gin.New()
	NewHandler(svc, opts).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func uploadFile(t *testing.T, router http.Handler, name, contentType, content, prompt string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.WriteField("prompt", prompt); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v (%s)", err, string(data))
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func assertErrorMessage(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body.Error != want {
		t.Fatalf("expected error %q, got %q", want, body.Error)
	}
}
