package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mizuamedesu/whisper-large-v3-turbo-webui/internal/models"
)

// ErrResultNotFound is returned when no transcription exists for an id.
var ErrResultNotFound = errors.New("transcription not found")

// ResultStore persists transcription results. The text lives in a .txt file
// under dir keyed by a fresh uuid; the database row is the queryable index.
// Results are append-only: an id is written once and never overwritten.
type ResultStore struct {
	db  *sql.DB
	dir string
}

func NewResultStore(db *sql.DB, dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcripts dir: %w", err)
	}
	return &ResultStore{db: db, dir: dir}, nil
}

// Save writes the transcription text and records its index row, returning
// the new transcription id.
func (s *ResultStore) Save(ctx context.Context, filename, language string, translated bool, text string) (string, error) {
	id := uuid.New().String()
	path := s.textPath(id)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write transcription: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (id, filename, language, translated, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, filename, language, translated, int64(len(text)), time.Now().UTC(),
	)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("index transcription: %w", err)
	}
	return id, nil
}

// Fetch returns the stored transcription text for an id.
func (s *ResultStore) Fetch(ctx context.Context, id string) (string, error) {
	if _, err := s.lookup(ctx, id); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.textPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrResultNotFound, id)
		}
		return "", fmt.Errorf("read transcription: %w", err)
	}
	return string(data), nil
}

// File returns the on-disk text path and the original source filename, for
// download handlers that send the file directly.
func (s *ResultStore) File(ctx context.Context, id string) (path, filename string, err error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return "", "", err
	}
	path = s.textPath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: %s", ErrResultNotFound, id)
		}
		return "", "", fmt.Errorf("stat transcription: %w", err)
	}
	return path, rec.Filename, nil
}

// Recent lists the most recently created transcription records.
func (s *ResultStore) Recent(ctx context.Context, limit int) ([]models.Transcription, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, language, translated, size, created_at FROM transcriptions ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	var recs []models.Transcription
	for rows.Next() {
		var rec models.Transcription
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Language, &rec.Translated, &rec.Size, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *ResultStore) lookup(ctx context.Context, id string) (*models.Transcription, error) {
	// Reject anything that is not a uuid before touching the filesystem.
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
	}
	var rec models.Transcription
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, language, translated, size, created_at FROM transcriptions WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.Filename, &rec.Language, &rec.Translated, &rec.Size, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup transcription: %w", err)
	}
	return &rec, nil
}

func (s *ResultStore) textPath(id string) string {
	return filepath.Join(s.dir, id+".txt")
}
