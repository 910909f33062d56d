// Package postgres keeps the export ledger in a Postgres table reached
// through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"vaine/internal/ledger/core"
	"vaine/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/vaine?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const schema = `CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	treatment TEXT NOT NULL,
	outcome TEXT NOT NULL,
	clusters INTEGER NOT NULL,
	alpha DOUBLE PRECISION NOT NULL,
	ate_selected DOUBLE PRECISION,
	ate_none DOUBLE PRECISION,
	ate_all DOUBLE PRECISION,
	artifacts JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

const selectColumns = `SELECT id, treatment, outcome, clusters, alpha, ate_selected, ate_none, ate_all, artifacts, created_at FROM exports`

// Ledger implements core.Ledger on Postgres.
type Ledger struct {
	db *sql.DB
}

// Open connects to dsn (falling back to a local default), pings the server
// and ensures the exports table exists.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
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
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure exports table: %w", err)
	}
	return &Ledger{db: db}, nil
}

// OverrideSQLOpen swaps the sql.Open hook, returning a restore func.
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

// Driver implements core.Ledger.
func (l *Ledger) Driver() core.Driver { return core.DriverPostgres }

// DB exposes the underlying sql.DB for integration testing hooks.
func (l *Ledger) DB() *sql.DB { return l.db }

// Append records e; a second append of the same id affects no rows.
func (l *Ledger) Append(ctx context.Context, e core.Entry) error {
	artifacts := e.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	payload, err := json.Marshal(artifacts)
	if err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO exports(id, treatment, outcome, clusters, alpha, ate_selected, ate_none, ate_all, artifacts, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Treatment, e.Outcome, e.ClusterCount, e.Threshold,
		core.NullableFloat(e.ATESelected), core.NullableFloat(e.ATENone), core.NullableFloat(e.ATEAll),
		string(payload), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDuplicate, e.ID)
	}
	return nil
}

// Get returns the entry with id.
func (l *Ledger) Get(ctx context.Context, id string) (core.Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return core.Entry{}, fmt.Errorf("select export: %w", err)
	}
	entries, err := scanAll(rows)
	if err != nil {
		return core.Entry{}, err
	}
	if len(entries) == 0 {
		return core.Entry{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return entries[0], nil
}

// List returns the entries of pair oldest first, or all entries for a zero pair.
func (l *Ledger) List(ctx context.Context, pair domain.PairKey) ([]core.Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if pair == (domain.PairKey{}) {
		rows, err = l.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, id`)
	} else {
		rows, err = l.db.QueryContext(ctx, selectColumns+` WHERE treatment = $1 AND outcome = $2 ORDER BY created_at, id`, pair.Treatment, pair.Outcome)
	}
	if err != nil {
		return nil, fmt.Errorf("select exports: %w", err)
	}
	return scanAll(rows)
}

// Close closes the pool.
func (l *Ledger) Close() error { return l.db.Close() }

func scanAll(rows *sql.Rows) ([]core.Entry, error) {
	defer func() { _ = rows.Close() }()
	out := []core.Entry{}
	for rows.Next() {
		var (
			e                   core.Entry
			clusters            int64
			selected, none, all sql.NullFloat64
			artifacts           []byte
			created             time.Time
		)
		if err := rows.Scan(&e.ID, &e.Treatment, &e.Outcome, &clusters, &e.Threshold,
			&selected, &none, &all, &artifacts, &created); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		e.ClusterCount = int(clusters)
		e.ATESelected = core.FloatOrNaN(selected.Valid, selected.Float64)
		e.ATENone = core.FloatOrNaN(none.Valid, none.Float64)
		e.ATEAll = core.FloatOrNaN(all.Valid, all.Float64)
		if err := json.Unmarshal(artifacts, &e.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts of %s: %w", e.ID, err)
		}
		e.CreatedAt = created
		out = append(out, e)
	}
	return out, rows.Err()
}
