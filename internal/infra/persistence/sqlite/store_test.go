package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"hemocount/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Set(ctx, domain.PrefMasterMixInputMode, "manual"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, domain.PrefMasterMixInputMode, "hemocytometer"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	v, ok, err := reloaded.Get(ctx, domain.PrefMasterMixInputMode)
	if err != nil || !ok || v != "hemocytometer" {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", v, ok, err)
	}
	var rows int
	if err := reloaded.DB().QueryRow(`SELECT COUNT(*) FROM preferences`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", rows)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreRejectsEmptyKey(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Set(context.Background(), "", "x"); err == nil {
		t.Fatalf("expected empty key rejected")
	}
}
