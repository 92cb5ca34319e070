package core

import (
	"context"
	"errors"
	"fmt"

	"hemocount/internal/config"
	"hemocount/internal/infra/persistence/memory"
	"hemocount/internal/infra/persistence/postgres"
	"hemocount/internal/infra/persistence/sqlite"
	"hemocount/pkg/domain"
)

// StorageDriver identifies a preference store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// ErrUnknownDriver is returned for an unrecognised storage driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// PreferenceStore is the key-value slot store used for UI preferences.
type PreferenceStore = domain.PreferenceStore

var (
	_ PreferenceStore = (*memory.Store)(nil)
	_ PreferenceStore = (*sqlite.Store)(nil)
	_ PreferenceStore = (*postgres.Store)(nil)
)

// OpenPreferenceStore selects a preference backend from configuration.
// An empty driver defaults to sqlite.
func OpenPreferenceStore(ctx context.Context, cfg config.Storage) (PreferenceStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, cfg.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownDriver, driver)
	}
}
