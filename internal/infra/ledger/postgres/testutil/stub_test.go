package testutil

import (
	"context"
	"testing"
	"time"
)

func TestStubFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	insert := `INSERT INTO things(id, kind, at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	for _, row := range []struct {
		id, kind string
		at       time.Time
	}{{"b", "x", base.Add(time.Hour)}, {"a", "x", base}, {"c", "y", base}} {
		if _, err := db.ExecContext(ctx, insert, row.id, row.kind, row.at); err != nil {
			t.Fatalf("insert %s: %v", row.id, err)
		}
	}
	res, err := db.ExecContext(ctx, insert, "a", "z", base)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		t.Fatalf("expected duplicate to affect no rows, got %d", n)
	}

	rows, err := db.QueryContext(ctx, `SELECT id, at FROM things WHERE kind = $1 ORDER BY at, id`, "x")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var (
			id string
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			t.Fatalf("scan: %v", err)
		}
		ids = append(ids, id)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if len(conn.Execs) != 4 {
		t.Fatalf("expected 4 recorded execs, got %d", len(conn.Execs))
	}
}

func TestStubFailureToggles(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	defer func() { _ = db.Close() }()

	conn.FailPing = true
	if err := db.PingContext(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailPing = false
	conn.FailTables = map[string]bool{"things": true}
	if _, err := db.QueryContext(ctx, `SELECT id FROM things`); err == nil {
		t.Fatalf("expected query failure")
	}
}
