// Package capture persists submitted command buffers in a SQLite database so
// a stream can be replayed later.
package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeozeozeo/gopm4/emulator"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_buffers (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	words BLOB NOT NULL,
	word_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Record is one captured command buffer
type Record struct {
	Seq       int64
	Words     []uint32
	CreatedAt time.Time
}

// Store provides SQLite-backed command buffer captures.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a capture database, creating its schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("capture path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append stores one command buffer and returns its sequence number.
func (s *Store) Append(ctx context.Context, words []uint32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if len(words) == 0 {
		return 0, emulator.ErrEmptyCommandBuffer
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO command_buffers (
	words,
	word_count,
	created_at
) VALUES (?, ?, ?)
`,
		emulator.BytesFromWords(words),
		len(words),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("append command buffer: %w", err)
	}
	return res.LastInsertId()
}

// Each calls fn for every captured buffer in capture order. Iteration stops
// at the first error returned by fn.
func (s *Store) Each(ctx context.Context, fn func(Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT seq, words, word_count, created_at
FROM command_buffers
ORDER BY seq ASC
`)
	if err != nil {
		return fmt.Errorf("list command buffers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       Record
			data      []byte
			wordCount int
			createdAt int64
		)
		if err := rows.Scan(&rec.Seq, &data, &wordCount, &createdAt); err != nil {
			return fmt.Errorf("scan command buffer: %w", err)
		}
		rec.Words, err = emulator.WordsFromBytes(data)
		if err != nil {
			return fmt.Errorf("command buffer %d: %w", rec.Seq, err)
		}
		if len(rec.Words) != wordCount {
			return fmt.Errorf("command buffer %d: %w", rec.Seq, ErrCorrupt)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()

		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate command buffers: %w", err)
	}
	return nil
}

// Count returns the number of captured buffers.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM command_buffers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count command buffers: %w", err)
	}
	return n, nil
}

// Returned when a stored buffer does not match its recorded length
var ErrCorrupt = errors.New("word count mismatch")
