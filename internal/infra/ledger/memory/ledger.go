// Package memory keeps the export ledger in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"vaine/internal/ledger/core"
	"vaine/pkg/domain"
)

// Ledger implements core.Ledger with a slice in append order.
type Ledger struct {
	mu      sync.RWMutex
	entries []core.Entry
	byID    map[string]int
}

// New returns an empty ledger.
func New() *Ledger { return &Ledger{byID: make(map[string]int)} }

// Driver implements core.Ledger.
func (l *Ledger) Driver() core.Driver { return core.DriverMemory }

// Append records e.
func (l *Ledger) Append(_ context.Context, e core.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.byID[e.ID]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicate, e.ID)
	}
	l.byID[e.ID] = len(l.entries)
	l.entries = append(l.entries, clone(e))
	return nil
}

// Get returns the entry with id.
func (l *Ledger) Get(_ context.Context, id string) (core.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return core.Entry{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return clone(l.entries[i]), nil
}

// List returns the entries of pair, or all entries for a zero pair.
func (l *Ledger) List(_ context.Context, pair domain.PairKey) ([]core.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []core.Entry{}
	for _, e := range l.entries {
		if pair == (domain.PairKey{}) || e.Pair() == pair {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

// Close implements core.Ledger.
func (l *Ledger) Close() error { return nil }

func clone(e core.Entry) core.Entry {
	e.Artifacts = append([]string(nil), e.Artifacts...)
	return e
}
