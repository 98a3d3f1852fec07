package summaries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"aifiles/internal/intake"
	"aifiles/internal/logging"
	"aifiles/internal/models"
	rediscache "aifiles/internal/redis"
	"aifiles/internal/summary"
	"aifiles/internal/worker"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPromptRequired   = errors.New("prompt is required")
	ErrUploadNotReady   = errors.New("upload is not ready")
	ErrExtractionFailed = errors.New("file content could not be extracted")
)

// Cache is the subset of the redis wrapper the service relies on.
type Cache interface {
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Options struct {
	FileBaseDir              string
	FileTTL                  time.Duration
	CacheTTL                 time.Duration
	MaxConcurrentGenerations int64
	// Backend is recorded with every summary ("rules", "openai", ...).
	Backend string
	Cipher  *ContentCipher
	Cache   Cache
}

// Service stores uploads, extracts their text in the background and keeps generated summaries.
type Service struct {
	db         *sql.DB
	intake     *intake.Intake
	summarizer summary.Summarizer
	dispatcher *worker.Dispatcher
	sem        *semaphore.Weighted
	opts       Options
	pending    sync.Map // upload id -> *worker.Ticket
	now        func() time.Time
}

func NewService(db *sql.DB, in *intake.Intake, summarizer summary.Summarizer, dispatcher *worker.Dispatcher, opts Options) *Service {
	if in == nil {
		in = intake.New(nil)
	}
	if summarizer == nil {
		summarizer = summary.Rules{}
	}
	if opts.FileBaseDir == "" {
		opts.FileBaseDir = filepath.Join(os.TempDir(), "summaryapi")
	}
	if opts.FileTTL <= 0 {
		opts.FileTTL = DefaultUploadTTL
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.MaxConcurrentGenerations <= 0 {
		opts.MaxConcurrentGenerations = 4
	}
	if opts.Backend == "" {
		opts.Backend = "rules"
	}
	return &Service{
		db:         db,
		intake:     in,
		summarizer: summarizer,
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(opts.MaxConcurrentGenerations),
		opts:       opts,
		now:        time.Now,
	}
}

// SaveUpload validates the file, writes it under the base directory and queues text extraction.
// clientKey groups jobs so one client cannot monopolize the workers.
func (s *Service) SaveUpload(ctx context.Context, clientKey string, f intake.File, prompt string) (*models.Upload, error) {
	if err := intake.Validate(f); err != nil {
		return nil, err
	}
	if f.Open == nil {
		return nil, errors.New("file has no content")
	}

	id := uuid.NewString()
	dir := filepath.Join(s.opts.FileBaseDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, storedName(f.Name))
	size, err := writeFile(path, f)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	now := s.now().UTC()
	up := &models.Upload{
		ID:         id,
		FileName:   f.Name,
		StoredPath: path,
		MimeType:   f.MIMEType,
		Size:       size,
		Prompt:     strings.TrimSpace(prompt),
		Status:     models.UploadPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.FileTTL),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, file_name, stored_path, mime_type, size, prompt, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		up.ID, up.FileName, up.StoredPath, up.MimeType, up.Size, up.Prompt, up.Status, up.CreatedAt, up.ExpiresAt,
	); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("insert upload: %w", err)
	}

	ticket, err := s.dispatcher.Submit(worker.Job{
		ID:  id,
		Key: clientKey,
		Run: func(jobCtx context.Context) error { return s.extract(jobCtx, id) },
	})
	if err != nil {
		_ = s.deleteUploadRecord(context.WithoutCancel(ctx), id)
		_ = os.RemoveAll(dir)
		return nil, err
	}
	s.pending.Store(id, ticket)
	go func() {
		<-ticket.Done()
		s.pending.Delete(id)
	}()
	logging.Debugf("[summaryapi] upload %s (%s, %d bytes) queued for %s", id, up.FileName, up.Size, clientKey)
	return up, nil
}

func storedName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}

func writeFile(path string, f intake.File) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write upload file: %w", err)
	}
	return n, nil
}

// extract runs on a worker and records the outcome on the upload row.
func (s *Service) extract(ctx context.Context, id string) error {
	up, err := s.GetUpload(ctx, id)
	if err != nil {
		return err
	}
	f := intake.File{
		Name:     up.FileName,
		MIMEType: up.MimeType,
		Size:     up.Size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(up.StoredPath)
		},
	}
	doc, err := s.intake.Process(ctx, f)
	if err != nil {
		log.Printf("[summaryapi] extraction of %s failed: %v", id, err)
		if _, uerr := s.db.ExecContext(ctx,
			`UPDATE uploads SET status = ?, error = ? WHERE id = ?`, models.UploadFailed, err.Error(), id); uerr != nil {
			return fmt.Errorf("mark upload failed: %w", uerr)
		}
		return err
	}
	stored, err := s.opts.Cipher.Encrypt(doc.Content)
	if err != nil {
		return fmt.Errorf("encrypt content: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE uploads SET status = ?, content = ? WHERE id = ?`,
		models.UploadReady, stored, id); err != nil {
		return fmt.Errorf("store content: %w", err)
	}
	logging.Debugf("[summaryapi] upload %s extracted, %d words (sniffed %s)", id, doc.WordCount(), doc.DetectedMIME)
	return nil
}

// GetUpload loads an upload with its decrypted content.
func (s *Service) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, stored_path, mime_type, size, prompt, status, content, error, created_at, expires_at
		 FROM uploads WHERE id = ?`, id)
	var (
		up      models.Upload
		content sql.NullString
		errMsg  sql.NullString
	)
	if err := row.Scan(&up.ID, &up.FileName, &up.StoredPath, &up.MimeType, &up.Size, &up.Prompt,
		&up.Status, &content, &errMsg, &up.CreatedAt, &up.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query upload: %w", err)
	}
	up.Error = errMsg.String
	if content.Valid {
		plain, err := s.opts.Cipher.Decrypt(content.String)
		if err != nil {
			if !errors.Is(err, errInvalidCiphertext) {
				return nil, err
			}
			// written before a key was configured
			plain = content.String
		}
		up.Content = plain
	}
	return &up, nil
}

// WaitUpload blocks until a queued extraction for id has finished.
func (s *Service) WaitUpload(ctx context.Context, id string) (*models.Upload, error) {
	if v, ok := s.pending.Load(id); ok {
		// the job outcome is read back from the row below
		if err := v.(*worker.Ticket).Wait(ctx); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return s.GetUpload(ctx, id)
}

// Generate summarizes an extracted upload and stores the result.
// An empty prompt falls back to the prompt sent with the upload.
func (s *Service) Generate(ctx context.Context, fileID, prompt string) (*models.Summary, error) {
	up, err := s.WaitUpload(ctx, fileID)
	if err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = up.Prompt
	}
	if prompt == "" {
		return nil, ErrPromptRequired
	}
	switch up.Status {
	case models.UploadFailed:
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, up.Error)
	case models.UploadPending:
		return nil, ErrUploadNotReady
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	doc := &models.UploadedDocument{
		Name:       up.FileName,
		Content:    up.Content,
		SizeBytes:  up.Size,
		MimeType:   up.MimeType,
		UploadedAt: up.CreatedAt,
	}
	text, err := s.summarizer.Summarize(ctx, doc, prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	sum := &models.Summary{
		ID:        uuid.NewString(),
		FileID:    up.ID,
		FileName:  up.FileName,
		Prompt:    prompt,
		Content:   text,
		Backend:   s.opts.Backend,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (id, upload_id, file_name, prompt, content, backend, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.FileID, sum.FileName, sum.Prompt, sum.Content, sum.Backend, sum.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}
	s.cacheSummary(ctx, sum)
	return sum, nil
}

func summaryCacheKey(id string) string { return "summary:" + id }

func (s *Service) cacheSummary(ctx context.Context, sum *models.Summary) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.SetJSON(ctx, summaryCacheKey(sum.ID), sum, s.opts.CacheTTL); err != nil {
		log.Printf("[summaryapi] cache summary %s: %v", sum.ID, err)
	}
}

// GetSummary reads through the cache to the database.
func (s *Service) GetSummary(ctx context.Context, id string) (*models.Summary, error) {
	if s.opts.Cache != nil {
		var cached models.Summary
		err := s.opts.Cache.GetJSON(ctx, summaryCacheKey(id), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, rediscache.ErrCacheMiss) {
			log.Printf("[summaryapi] read cached summary %s: %v", id, err)
		}
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, upload_id, file_name, prompt, content, backend, created_at FROM summaries WHERE id = ?`, id)
	var sum models.Summary
	if err := row.Scan(&sum.ID, &sum.FileID, &sum.FileName, &sum.Prompt, &sum.Content, &sum.Backend, &sum.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query summary: %w", err)
	}
	s.cacheSummary(ctx, &sum)
	return &sum, nil
}
