// Package sqlite keeps the export ledger in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"vaine/internal/ledger/core"
	"vaine/pkg/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	treatment TEXT NOT NULL,
	outcome TEXT NOT NULL,
	clusters INTEGER NOT NULL,
	alpha REAL NOT NULL,
	ate_selected REAL,
	ate_none REAL,
	ate_all REAL,
	artifacts TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// createdLayout is fixed width so created_at text sorts chronologically.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, treatment, outcome, clusters, alpha, ate_selected, ate_none, ate_all, artifacts, created_at FROM exports`

// Ledger implements core.Ledger on SQLite.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path == "" {
		path = "vaine.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create exports table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS exports_pair ON exports(treatment, outcome)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create exports index: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Driver implements core.Ledger.
func (l *Ledger) Driver() core.Driver { return core.DriverSQLite }

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// DB exposes the underlying sql.DB for tests.
func (l *Ledger) DB() *sql.DB { return l.db }

// Append records e.
func (l *Ledger) Append(ctx context.Context, e core.Entry) error {
	artifacts, err := json.Marshal(nonNil(e.Artifacts))
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO exports(id, treatment, outcome, clusters, alpha, ate_selected, ate_none, ate_all, artifacts, created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Treatment, e.Outcome, e.ClusterCount, e.Threshold,
		core.NullableFloat(e.ATESelected), core.NullableFloat(e.ATENone), core.NullableFloat(e.ATEAll),
		string(artifacts), e.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", core.ErrDuplicate, e.ID)
		}
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// Get returns the entry with id.
func (l *Ledger) Get(ctx context.Context, id string) (core.Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
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
		rows, err = l.db.QueryContext(ctx, selectColumns+` WHERE treatment = ? AND outcome = ? ORDER BY created_at, id`, pair.Treatment, pair.Outcome)
	}
	if err != nil {
		return nil, fmt.Errorf("select exports: %w", err)
	}
	return scanAll(rows)
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

func scanAll(rows *sql.Rows) ([]core.Entry, error) {
	defer func() { _ = rows.Close() }()
	out := []core.Entry{}
	for rows.Next() {
		var (
			e                     core.Entry
			selected, none, all   sql.NullFloat64
			artifacts, createdRaw string
		)
		if err := rows.Scan(&e.ID, &e.Treatment, &e.Outcome, &e.ClusterCount, &e.Threshold,
			&selected, &none, &all, &artifacts, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		e.ATESelected = core.FloatOrNaN(selected.Valid, selected.Float64)
		e.ATENone = core.FloatOrNaN(none.Valid, none.Float64)
		e.ATEAll = core.FloatOrNaN(all.Valid, all.Float64)
		if err := json.Unmarshal([]byte(artifacts), &e.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts of %s: %w", e.ID, err)
		}
		created, err := time.Parse(time.RFC3339Nano, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("decode created_at of %s: %w", e.ID, err)
		}
		e.CreatedAt = created
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
