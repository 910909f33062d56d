// Package exclusion tracks, per treatment/outcome pair, the observations a
// user has explicitly removed from the analysis.
//
// A Registry is an immutable value: Exclude and Include return a new Registry
// and never modify the receiver, so older snapshots stay valid.
package exclusion

import (
	"sort"

	"vaine/pkg/domain"
)

// Registry maps a pair to its excluded observations in insertion order.
type Registry struct {
	entries map[domain.PairKey][]domain.Observation
}

// New returns an empty registry.
func New() Registry {
	return Registry{}
}

// Exclude appends points to the pair's list, skipping any whose index is
// already excluded for that pair.
func (r Registry) Exclude(key domain.PairKey, points ...domain.Observation) Registry {
	current := r.entries[key]
	present := make(map[int]struct{}, len(current)+len(points))
	for _, o := range current {
		present[o.Index] = struct{}{}
	}
	updated := make([]domain.Observation, len(current), len(current)+len(points))
	copy(updated, current)
	for _, p := range points {
		if _, dup := present[p.Index]; dup {
			continue
		}
		present[p.Index] = struct{}{}
		updated = append(updated, p.Clone())
	}
	if len(updated) == len(current) {
		return r
	}
	next := r.clone()
	next.entries[key] = updated
	return next
}

// Include puts back the single point with the given index. The pair entry is
// removed entirely once its list is empty. Unknown keys or indices are a no-op.
func (r Registry) Include(key domain.PairKey, index int) Registry {
	current, ok := r.entries[key]
	if !ok {
		return r
	}
	updated := make([]domain.Observation, 0, len(current))
	for _, o := range current {
		if o.Index != index {
			updated = append(updated, o)
		}
	}
	if len(updated) == len(current) {
		return r
	}
	next := r.clone()
	if len(updated) == 0 {
		delete(next.entries, key)
	} else {
		next.entries[key] = updated
	}
	return next
}

// Lookup returns a copy of the excluded points for key; an absent key yields
// an empty list.
func (r Registry) Lookup(key domain.PairKey) []domain.Observation {
	current := r.entries[key]
	out := make([]domain.Observation, len(current))
	for i, o := range current {
		out[i] = o.Clone()
	}
	return out
}

// Contains reports whether index is excluded for key.
func (r Registry) Contains(key domain.PairKey, index int) bool {
	for _, o := range r.entries[key] {
		if o.Index == index {
			return true
		}
	}
	return false
}

// Keys lists the pairs that currently have exclusions, ordered by treatment
// then outcome.
func (r Registry) Keys() []domain.PairKey {
	keys := make([]domain.PairKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Treatment != keys[j].Treatment {
			return keys[i].Treatment < keys[j].Treatment
		}
		return keys[i].Outcome < keys[j].Outcome
	})
	return keys
}

// Len returns the number of excluded points for key.
func (r Registry) Len(key domain.PairKey) int {
	return len(r.entries[key])
}

// Equal reports whether both registries hold the same indices per pair in the
// same order.
func (r Registry) Equal(other Registry) bool {
	if len(r.entries) != len(other.entries) {
		return false
	}
	for key, list := range r.entries {
		theirs, ok := other.entries[key]
		if !ok || len(theirs) != len(list) {
			return false
		}
		for i := range list {
			if list[i].Index != theirs[i].Index {
				return false
			}
		}
	}
	return true
}

// clone copies the outer map; per-pair slices are shared and never mutated
// in place.
func (r Registry) clone() Registry {
	next := Registry{entries: make(map[domain.PairKey][]domain.Observation, len(r.entries)+1)}
	for k, v := range r.entries {
		next.entries[k] = v
	}
	return next
}
