// Package ledger selects the backend that indexes exported analyses.
// Callers depend on ledger.Ledger; the infra packages are only imported here.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"vaine/internal/infra/ledger/memory"
	"vaine/internal/infra/ledger/postgres"
	"vaine/internal/infra/ledger/sqlite"
	"vaine/internal/ledger/core"
)

type (
	// Driver identifies a ledger backend.
	Driver = core.Driver
	// Entry records one export.
	Entry = core.Entry
	// Ledger is the export index.
	Ledger = core.Ledger
)

const (
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverMemory   = core.DriverMemory
)

var (
	// ErrNotFound is returned for an unknown export id.
	ErrNotFound = core.ErrNotFound
	// ErrDuplicate is returned when an id is appended twice.
	ErrDuplicate = core.ErrDuplicate
)

// Config selects and configures a backend.
type Config struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
}

// Open constructs the configured ledger. An empty driver selects sqlite.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	driver := Driver(strings.ToLower(string(cfg.Driver)))
	switch driver {
	case "", DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}
