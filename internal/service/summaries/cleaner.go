package summaries

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultUploadTTL             = 24 * time.Hour
	DefaultUploadCleanupInterval = time.Hour
)

// StartUploadCleaner removes expired uploads and their summaries until ctx ends.
func (s *Service) StartUploadCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultUploadCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.cleanupExpiredUploads(ctx)
			if err != nil {
				log.Printf("cleanup uploads error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[summaryapi] removed %d expired uploads", n)
			}
		}
	}
}

func (s *Service) cleanupExpiredUploads(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stored_path FROM uploads WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	type uploadRow struct {
		id   string
		path string
	}
	var expired []uploadRow
	for rows.Next() {
		var r uploadRow
		if err := rows.Scan(&r.id, &r.path); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, u := range expired {
		if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove upload file %s failed: %v", u.path, err)
			continue
		}
		if err := s.deleteUploadRecord(ctx, u.id); err != nil {
			log.Printf("delete upload record %s failed: %v", u.id, err)
			continue
		}
		removed++

		// prune the per-upload directory
		_ = os.Remove(filepath.Dir(u.path))
	}
	return removed, nil
}

func (s *Service) deleteUploadRecord(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE upload_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
