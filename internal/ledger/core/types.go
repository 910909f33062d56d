// Package core defines the export ledger contract: an append-only index of
// exported analyses kept next to the artifacts themselves.
package core

import (
	"context"
	"errors"
	"math"
	"time"

	"vaine/pkg/domain"
)

// Driver identifies a ledger backend.
type Driver string

const (
	// DriverSQLite keeps the ledger in a local SQLite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres keeps the ledger in a Postgres table.
	DriverPostgres Driver = "postgres"
	// DriverMemory keeps the ledger in process memory.
	DriverMemory Driver = "memory"
)

var (
	// ErrNotFound is returned by Get for an unknown export id.
	ErrNotFound = errors.New("ledger: export not found")
	// ErrDuplicate is returned by Append for an id that is already recorded.
	ErrDuplicate = errors.New("ledger: duplicate export id")
)

// Entry records one export. ATE figures are NaN when undefined.
type Entry struct {
	ID           string    `json:"id"`
	Treatment    string    `json:"treatment"`
	Outcome      string    `json:"outcome"`
	ClusterCount int       `json:"clusters"`
	Threshold    float64   `json:"alpha"`
	ATESelected  float64   `json:"-"`
	ATENone      float64   `json:"-"`
	ATEAll       float64   `json:"-"`
	Artifacts    []string  `json:"artifacts"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pair returns the entry's treatment/outcome key.
func (e Entry) Pair() domain.PairKey { return domain.NewPairKey(e.Treatment, e.Outcome) }

// Ledger appends and reads export entries. List returns entries oldest first;
// a zero pair lists every entry.
type Ledger interface {
	Append(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context, pair domain.PairKey) ([]Entry, error)
	Driver() Driver
	Close() error
}

// NullableFloat maps NaN and infinities to a SQL NULL.
func NullableFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// FloatOrNaN reads a nullable column back, NULL becoming NaN.
func FloatOrNaN(valid bool, f float64) float64 {
	if !valid {
		return math.NaN()
	}
	return f
}
