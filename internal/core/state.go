package core

import (
	"time"

	"vaine/internal/appearance"
	"vaine/internal/exclusion"
	"vaine/internal/selection"
	"vaine/pkg/domain"
)

// State is one consistent snapshot of a session. Every field is derived from
// the same set of inputs; a State is never modified after it is published, and
// accessors hand out copies.
type State struct {
	version   uint64
	updatedAt time.Time

	pair     domain.PairKey
	clusters int
	alpha    float64

	cut          domain.ClusterCut
	observations []domain.Observation
	regressions  map[domain.ClusterID]domain.ClusterRegression
	clusterIDs   []domain.ClusterID

	selection  selection.Coordinator
	deselected []int
	exclusions exclusion.Registry
	appearance appearance.Book

	ateAll      float64
	ateSelected float64
}

// clone is shallow: every field holds a value that is replaced, never mutated.
func (s *State) clone() *State {
	out := *s
	return &out
}

// Version increases by one with every published state.
func (s *State) Version() uint64 { return s.version }

// UpdatedAt is the time the state was published.
func (s *State) UpdatedAt() time.Time { return s.updatedAt }

// Pair returns the selected treatment/outcome.
func (s *State) Pair() domain.PairKey { return s.pair }

// ClusterCount returns the requested number of clusters.
func (s *State) ClusterCount() int { return s.clusters }

// Threshold returns the significance threshold.
func (s *State) Threshold() float64 { return s.alpha }

// ClusterIDs returns the current cluster ids in ascending order.
func (s *State) ClusterIDs() []domain.ClusterID {
	return append([]domain.ClusterID(nil), s.clusterIDs...)
}

// Observations returns a copy of the assembled observations.
func (s *State) Observations() []domain.Observation {
	out := make([]domain.Observation, len(s.observations))
	for i, o := range s.observations {
		out[i] = o.Clone()
	}
	return out
}

// Regression returns the fit for id.
func (s *State) Regression(id domain.ClusterID) (domain.ClusterRegression, bool) {
	reg, ok := s.regressions[id]
	if !ok {
		return domain.ClusterRegression{}, false
	}
	return cloneRegression(reg), true
}

// Regressions returns a copy of every cluster fit.
func (s *State) Regressions() map[domain.ClusterID]domain.ClusterRegression {
	out := make(map[domain.ClusterID]domain.ClusterRegression, len(s.regressions))
	for id, reg := range s.regressions {
		out[id] = cloneRegression(reg)
	}
	return out
}

// ValidClusters returns the effective validity of every cluster.
func (s *State) ValidClusters() domain.ValidClusters { return s.selection.ValidClusters() }

// Overridden reports whether id's validity was set manually.
func (s *State) Overridden(id domain.ClusterID) bool { return s.selection.Overridden(id) }

// PlotDeselection returns the indices one plot reported as deselected.
func (s *State) PlotDeselection(plot selection.PlotID) []int {
	return s.selection.PlotDeselection(plot)
}

// Deselected returns the reconciled global deselection.
func (s *State) Deselected() []int { return append([]int(nil), s.deselected...) }

// ExcludedFor returns the points excluded for pair.
func (s *State) ExcludedFor(pair domain.PairKey) []domain.Observation {
	return s.exclusions.Lookup(pair)
}

// AllExclusions returns every pair with at least one excluded point.
func (s *State) AllExclusions() map[domain.PairKey][]domain.Observation {
	keys := s.exclusions.Keys()
	out := make(map[domain.PairKey][]domain.Observation, len(keys))
	for _, k := range keys {
		out[k] = s.exclusions.Lookup(k)
	}
	return out
}

// Colors returns every cluster color entry.
func (s *State) Colors() map[domain.ClusterID]domain.AppearanceEntry { return s.appearance.Colors() }

// Names returns every cluster name entry.
func (s *State) Names() map[domain.ClusterID]domain.AppearanceEntry { return s.appearance.Names() }

// ColorOf returns the display color of id.
func (s *State) ColorOf(id domain.ClusterID) string { return s.appearance.ColorOf(id) }

// NameOf returns the display name of id.
func (s *State) NameOf(id domain.ClusterID) string { return s.appearance.NameOf(id) }

// ATE returns the estimate over every evaluable cluster.
func (s *State) ATE() float64 { return s.ateAll }

// SelectedATE returns the estimate over valid clusters.
func (s *State) SelectedATE() float64 { return s.ateSelected }

func cloneRegression(reg domain.ClusterRegression) domain.ClusterRegression {
	out := reg
	out.Included = cloneObservations(reg.Included)
	out.Excluded = cloneObservations(reg.Excluded)
	return out
}

func cloneObservations(in []domain.Observation) []domain.Observation {
	out := make([]domain.Observation, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}
