package summaries

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"aifiles/internal/config"
	"aifiles/internal/intake"
	"aifiles/internal/models"
	rediscache "aifiles/internal/redis"
	"aifiles/internal/storage"
	"aifiles/internal/worker"
)

const meetingNotes = "Weekly sync. We discussed the meeting agenda and the project timeline. " +
	"Action items were assigned and deadlines confirmed."

func TestUploadGenerateAndFetch(t *testing.T) {
	svc, db := newTestService(t, Options{})
	ctx := context.Background()

	up, err := svc.SaveUpload(ctx, "127.0.0.1", intake.FromBytes("notes.txt", "text/plain", []byte(meetingNotes)), "recap")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if up.Status != models.UploadPending || up.Size != int64(len(meetingNotes)) {
		t.Fatalf("unexpected upload: %+v", up)
	}
	if _, err := os.Stat(up.StoredPath); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	sum, err := svc.Generate(ctx, up.ID, "Highlight action items")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(sum.Content, "# Action Items Summary") || !strings.Contains(sum.Content, "(18 words)") {
		t.Fatalf("expected action items summary, got %q", sum.Content)
	}
	if sum.Backend != "rules" || sum.FileID != up.ID || sum.Prompt != "Highlight action items" {
		t.Fatalf("unexpected summary record: %+v", sum)
	}

	got, err := svc.GetSummary(ctx, sum.ID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if got.Content != sum.Content {
		t.Fatalf("stored summary mismatch")
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM uploads WHERE id = ?`, up.ID).Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != models.UploadReady {
		t.Fatalf("expected ready upload, got %s", status)
	}
}

func TestGenerateFallsBackToUploadPrompt(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	up, err := svc.SaveUpload(ctx, "c", intake.FromBytes("plan.txt", "text/plain", []byte("roadmap for next year")), "strategy overview")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	sum, err := svc.Generate(ctx, up.ID, "  ")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sum.Prompt != "strategy overview" {
		t.Fatalf("expected upload prompt, got %q", sum.Prompt)
	}

	up2, err := svc.SaveUpload(ctx, "c", intake.FromBytes("plan.txt", "text/plain", []byte("roadmap")), "")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if _, err := svc.Generate(ctx, up2.ID, ""); !errors.Is(err, ErrPromptRequired) {
		t.Fatalf("expected ErrPromptRequired, got %v", err)
	}
}

func TestSaveUploadRejectsInvalidFiles(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.SaveUpload(context.Background(), "c", intake.FromBytes("photo.png", "image/png", []byte{0x89}), "recap")
	var verr *intake.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Reason != "Please upload a TXT, PDF, or DOC file" {
		t.Fatalf("unexpected reason %q", verr.Reason)
	}
}

func TestGenerateUnknownUpload(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	if _, err := svc.Generate(context.Background(), "missing", "recap"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetSummary(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(_ context.Context, f intake.File) (string, error) {
	return "", &intake.ReadError{Name: f.Name, Err: errors.New("disk on fire")}
}
func (failingExtractor) SupportedTypes() []string      { return nil }
func (failingExtractor) SupportedExtensions() []string { return []string{".txt"} }
func (failingExtractor) Name() string                  { return "failing" }

func TestGenerateAfterFailedExtraction(t *testing.T) {
	registry := intake.NewRegistry(failingExtractor{})
	registry.Register(failingExtractor{})
	svc, _ := newTestServiceWithIntake(t, intake.New(registry), Options{})
	ctx := context.Background()

	up, err := svc.SaveUpload(ctx, "c", intake.FromBytes("notes.txt", "text/plain", []byte(meetingNotes)), "recap")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	_, err = svc.Generate(ctx, up.ID, "recap")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	got, err := svc.GetUpload(ctx, up.ID)
	if err != nil {
		t.Fatalf("get upload: %v", err)
	}
	if got.Status != models.UploadFailed || !strings.Contains(got.Error, "disk on fire") {
		t.Fatalf("unexpected failed upload: %+v", got)
	}
}

func TestContentEncryptedAtRest(t *testing.T) {
	cipher, err := NewContentCipher(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	svc, db := newTestService(t, Options{Cipher: cipher})
	ctx := context.Background()

	up, err := svc.SaveUpload(ctx, "c", intake.FromBytes("notes.txt", "text/plain", []byte(meetingNotes)), "recap")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	got, err := svc.WaitUpload(ctx, up.ID)
	if err != nil {
		t.Fatalf("wait upload: %v", err)
	}
	if got.Content != meetingNotes {
		t.Fatalf("expected decrypted content, got %q", got.Content)
	}
	var stored string
	if err := db.QueryRow(`SELECT content FROM uploads WHERE id = ?`, up.ID).Scan(&stored); err != nil {
		t.Fatalf("query content: %v", err)
	}
	if stored == meetingNotes {
		t.Fatalf("content stored in plaintext")
	}
}

func TestContentCipherKeys(t *testing.T) {
	if _, err := NewContentCipher("short"); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
	t.Setenv(contentKeyEnv, "")
	c, err := ContentCipherFromEnv()
	if err != nil || c != nil {
		t.Fatalf("expected no cipher without key, got %v (%v)", c, err)
	}
	// "0123456789abcdef0123456789abcdef" in base64
	t.Setenv(contentKeyEnv, "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	c, err = ContentCipherFromEnv()
	if err != nil || c == nil {
		t.Fatalf("expected cipher from base64 key: %v", err)
	}
	sealed, _ := c.Encrypt("hello")
	if plain, err := c.Decrypt(sealed); err != nil || plain != "hello" {
		t.Fatalf("round trip failed: %q %v", plain, err)
	}
	if _, err := c.Decrypt("not base64!"); !errors.Is(err, errInvalidCiphertext) {
		t.Fatalf("expected invalid ciphertext, got %v", err)
	}
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]models.Summary
	sets int
}

func (m *memoryCache) GetJSON(_ context.Context, key string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return rediscache.ErrCacheMiss
	}
	*(out.(*models.Summary)) = v
	return nil
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = *(value.(*models.Summary))
	m.sets++
	return nil
}

func TestGetSummaryReadsThroughCache(t *testing.T) {
	cache := &memoryCache{data: make(map[string]models.Summary)}
	svc, db := newTestService(t, Options{Cache: cache})
	ctx := context.Background()

	up, err := svc.SaveUpload(ctx, "c", intake.FromBytes("notes.txt", "text/plain", []byte(meetingNotes)), "recap")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	sum, err := svc.Generate(ctx, up.ID, "recap")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected summary cached on generate, sets=%d", cache.sets)
	}

	if _, err := db.Exec(`DELETE FROM summaries WHERE id = ?`, sum.ID); err != nil {
		t.Fatalf("delete summary row: %v", err)
	}
	got, err := svc.GetSummary(ctx, sum.ID)
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if got.Content != sum.Content {
		t.Fatalf("cached content mismatch")
	}

	cache.data = make(map[string]models.Summary)
	if _, err := svc.GetSummary(ctx, sum.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after cache flush, got %v", err)
	}
}

func TestCleanupExpiredUploads(t *testing.T) {
	svc, db := newTestService(t, Options{FileTTL: time.Minute})
	ctx := context.Background()

	up, err := svc.SaveUpload(ctx, "c", intake.FromBytes("notes.txt", "text/plain", []byte(meetingNotes)), "recap")
	if err != nil {
		t.Fatalf("save upload: %v", err)
	}
	if _, err := svc.Generate(ctx, up.ID, "recap"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	n, err := svc.cleanupExpiredUploads(ctx)
	if err != nil || n != 0 {
		t.Fatalf("nothing should expire yet: n=%d err=%v", n, err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	n, err = svc.cleanupExpiredUploads(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed upload, got %d", n)
	}
	if _, err := os.Stat(up.StoredPath); !os.IsNotExist(err) {
		t.Fatalf("expected stored file removed, got %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM summaries`).Scan(&count); err != nil {
		t.Fatalf("count summaries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected summaries removed with upload, got %d", count)
	}
}

func newTestService(t *testing.T, opts Options) (*Service, *sql.DB) {
	t.Helper()
	return newTestServiceWithIntake(t, intake.New(nil), opts)
}

func newTestServiceWithIntake(t *testing.T, in *intake.Intake, opts Options) (*Service, *sql.DB) {
	t.Helper()
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
	if opts.FileBaseDir == "" {
		opts.FileBaseDir = t.TempDir()
	}
	return NewService(db, in, nil, dispatcher, opts), db
}
