// Package journal keeps a local sqlite record of completed uploads so the
// status surfaces can answer without a backend round-trip. The backend owns
// the indexed content; this is bookkeeping only.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kb2mcp/kb2mcp/internal/model"
)

type SQLiteJournal struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteJournal(path string) *SQLiteJournal {
	return &SQLiteJournal{path: path}
}

func (j *SQLiteJournal) Init(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", j.path)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS uploads (
  upload_id INTEGER PRIMARY KEY AUTOINCREMENT,
  filename TEXT NOT NULL,
  content_kind TEXT NOT NULL,
  words INTEGER NOT NULL DEFAULT 0,
  chunks INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	j.db = db
	return nil
}

// RecordUpload appends one row. Re-uploading the same filename records a
// second row; the journal mirrors backend behavior, which keeps duplicates.
func (j *SQLiteJournal) RecordUpload(ctx context.Context, rec model.UploadRecord) error {
	db, err := j.ensureDB(ctx)
	if err != nil {
		return err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = db.ExecContext(
		ctx,
		`INSERT INTO uploads(filename, content_kind, words, chunks, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		rec.Filename,
		rec.ContentKind,
		rec.Words,
		rec.Chunks,
		createdAt.Format(time.RFC3339Nano),
	)
	return err
}

func (j *SQLiteJournal) Stats(ctx context.Context) (model.JournalStats, error) {
	db, err := j.ensureDB(ctx)
	if err != nil {
		return model.JournalStats{}, err
	}

	var stats model.JournalStats
	var lastUpload sql.NullString
	row := db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(words), 0),
       COALESCE(SUM(chunks), 0),
       MAX(created_at)
FROM uploads`)
	if err := row.Scan(&stats.Uploads, &stats.Words, &stats.Chunks, &lastUpload); err != nil {
		return model.JournalStats{}, err
	}

	if lastUpload.Valid && lastUpload.String != "" {
		at, err := time.Parse(time.RFC3339Nano, lastUpload.String)
		if err != nil {
			return model.JournalStats{}, err
		}
		stats.LastUpload = at
	}
	return stats, nil
}

// Recent returns the latest uploads, newest first, capped at limit.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	db, err := j.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.QueryContext(ctx, `
SELECT upload_id, filename, content_kind, words, chunks, created_at
FROM uploads
ORDER BY upload_id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []model.UploadRecord
	for rows.Next() {
		var rec model.UploadRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.ContentKind, &rec.Words, &rec.Chunks, &createdAt); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = at
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *SQLiteJournal) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := j.Init(ctx); err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, errors.New("journal db not initialized")
	}
	return j.db, nil
}
