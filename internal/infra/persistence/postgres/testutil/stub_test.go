package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for _, v := range []string{"manual", "hemocytometer"} {
		_, err := conn.ExecContext(ctx, "INSERT INTO preferences(key,value) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value", []driver.NamedValue{
			{Value: "masterMixInputMode"},
			{Value: v},
		})
		if err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if len(conn.Tables["preferences"]) != 1 {
		t.Fatalf("expected upsert to keep one row, got %v", conn.Tables["preferences"])
	}

	rows, err := conn.QueryContext(ctx, "SELECT key, value FROM preferences", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "masterMixInputMode" || dest[1] != "hemocytometer" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}

func TestStubDBFailureToggles(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing, conn.FailExec, conn.FailQuery, conn.FailBegin = true, true, true, true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	if _, err := conn.ExecContext(ctx, "CREATE TABLE x (a TEXT)", nil); err == nil {
		t.Fatalf("expected exec failure")
	}
	if _, err := conn.QueryContext(ctx, "SELECT a FROM x", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	if _, err := conn.Begin(); err == nil {
		t.Fatalf("expected begin failure")
	}
	if _, err := conn.Prepare("SELECT 1"); err == nil {
		t.Fatalf("expected prepare unsupported")
	}
}
