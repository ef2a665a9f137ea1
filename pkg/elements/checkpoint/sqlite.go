package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	elerrors "github.com/randalmurphal/elements/pkg/elements/errors"
)

// SQLiteCatalog indexes snapshots in a SQLite database.
// It is suitable for single-process production use.
type SQLiteCatalog struct {
	db     *sql.DB
	retry  elerrors.RetryConfig
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteCatalog opens or creates a SQLite snapshot catalog.
// The path should be a file path (e.g., "./snapshots.db") or ":memory:" for testing.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			root TEXT NOT NULL,
			name TEXT NOT NULL,
			step INTEGER NOT NULL,
			keys TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (root, name)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snapshots_root
		ON snapshots(root)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	retry := elerrors.DefaultRetry
	retry.RetryableFunc = isBusy
	return &SQLiteCatalog{db: db, retry: retry}, nil
}

// isBusy reports whether err is SQLite lock contention from another
// connection or process.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// exec runs a statement, retrying while the database is locked.
func (s *SQLiteCatalog) exec(ctx context.Context, op, query string, args ...any) error {
	result := elerrors.WithRetryContext(ctx, s.retry, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
	if result.Err != nil {
		err := result.Err
		var catErr *elerrors.CategorizedError
		if errors.As(err, &catErr) && catErr.Err != nil {
			err = catErr.Err
		}
		return fmt.Errorf("%s snapshot: %w", op, err)
	}
	return nil
}

// Record implements Catalog.
func (s *SQLiteCatalog) Record(ctx context.Context, info SnapshotInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCatalogClosed
	}

	keys, err := json.Marshal(info.Keys)
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}
	return s.exec(ctx, "record", `
		INSERT INTO snapshots (root, name, step, keys, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(root, name) DO UPDATE SET
			step = excluded.step,
			keys = excluded.keys,
			size = excluded.size,
			created_at = excluded.created_at
	`, info.Root, info.Name, info.Step, string(keys), info.Size,
		info.CreatedAt.UTC().Format(time.RFC3339Nano))
}

// Forget implements Catalog.
func (s *SQLiteCatalog) Forget(ctx context.Context, root, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrCatalogClosed
	}
	return s.exec(ctx, "forget", `
		DELETE FROM snapshots
		WHERE root = ? AND name = ?
	`, root, name)
}

// List implements Catalog.
func (s *SQLiteCatalog) List(ctx context.Context, root string) ([]SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrCatalogClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, step, keys, size, created_at
		FROM snapshots
		WHERE root = ?
		ORDER BY name
	`, root)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []SnapshotInfo{}
	for rows.Next() {
		info := SnapshotInfo{Root: root}
		var keys, createdAt string
		if err := rows.Scan(&info.Name, &info.Step, &keys, &info.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot info: %w", err)
		}
		if err := json.Unmarshal([]byte(keys), &info.Keys); err != nil {
			return nil, fmt.Errorf("decode keys of %s: %w", info.Name, err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return infos, nil
}

// Close implements Catalog.
func (s *SQLiteCatalog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
