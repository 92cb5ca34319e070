// Package postgres provides a Postgres-backed preference store that mirrors
// the in-memory semantics and writes every change through to the server.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"hemocount/internal/infra/persistence/memory"
	"hemocount/pkg/domain"
)

var _ domain.PreferenceStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/hemocount?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store serves reads from an embedded memory store hydrated at open.
type Store struct {
	*memory.Store
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN),
// ensures the preferences table exists and loads the stored slots.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensurePreferencesTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	state, err := loadPreferences(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.New()
	mem.ImportState(state)
	return &Store{Store: mem, db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func ensurePreferencesTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure preferences table: %w", err)
	}
	return nil
}

func loadPreferences(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("select preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	state := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		state[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return state, nil
}

// Set upserts the preference inside a transaction, then updates the cache.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("preference key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO preferences(key,value,updated_at) VALUES($1,$2,$3) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		key, value, s.now()); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return s.Store.Set(ctx, key, value)
}

// Close closes the database handle.
func (s *Store) Close() error {
	_ = s.Store.Close()
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
