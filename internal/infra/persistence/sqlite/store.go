// Package sqlite persists preference slots in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"hemocount/internal/infra/persistence/memory"
	"hemocount/pkg/domain"
)

var _ domain.PreferenceStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "hemocount.db"

// Store writes every preference through to SQLite and serves reads from
// the embedded memory store hydrated at open.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path and loads the
// stored preferences.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create preferences table: %w", err)
	}
	s := &Store{Store: memory.New(), db: db, path: path}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return fmt.Errorf("select preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()
	state := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		state[key] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate preferences: %w", err)
	}
	s.ImportState(state)
	return nil
}

// Set upserts the preference row, then updates the cache.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("preference key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(key,value,updated_at) VALUES(?,?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return s.Store.Set(ctx, key, value)
}

// Close closes the database handle.
func (s *Store) Close() error {
	_ = s.Store.Close()
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
