// Package selection reconciles the "not brushed" point sets reported by
// several interactive views into one global deselected set, and tracks
// manual cluster validity overrides.
//
// Coordinator is an immutable value; every mutator returns a new Coordinator.
package selection

import (
	"sort"

	"vaine/pkg/domain"
)

// PlotID names a view that reports deselections.
type PlotID string

// Coordinator holds per-plot deselections and cluster validity.
type Coordinator struct {
	order     []PlotID
	byPlot    map[PlotID][]int
	valid     domain.ValidClusters
	overrides map[domain.ClusterID]bool
}

// New returns a coordinator with no contributions.
func New() Coordinator {
	return Coordinator{}
}

// SetPlotDeselection records the indices plot currently does not have
// brushed. In replace mode (union=false) every other plot's contribution is
// discarded and plot becomes the only contributor. In union mode the set is
// stored alongside the existing ones.
func (c Coordinator) SetPlotDeselection(plot PlotID, indices []int, union bool) Coordinator {
	next := c
	set := normalize(indices)
	if !union {
		next.order = []PlotID{plot}
		next.byPlot = map[PlotID][]int{plot: set}
		return next
	}
	next.byPlot = make(map[PlotID][]int, len(c.byPlot)+1)
	for k, v := range c.byPlot {
		next.byPlot[k] = v
	}
	if _, known := c.byPlot[plot]; !known {
		next.order = append(append([]PlotID(nil), c.order...), plot)
	}
	next.byPlot[plot] = set
	return next
}

// ClearPlot drops plot's contribution. Unknown plots are ignored.
func (c Coordinator) ClearPlot(plot PlotID) Coordinator {
	if _, known := c.byPlot[plot]; !known {
		return c
	}
	next := c
	next.byPlot = make(map[PlotID][]int, len(c.byPlot))
	next.order = make([]PlotID, 0, len(c.order))
	for _, p := range c.order {
		if p == plot {
			continue
		}
		next.order = append(next.order, p)
		next.byPlot[p] = c.byPlot[p]
	}
	return next
}

// Plots lists contributing plots in registration order.
func (c Coordinator) Plots() []PlotID {
	return append([]PlotID(nil), c.order...)
}

// PlotDeselection returns plot's current set; unknown plots yield nil.
func (c Coordinator) PlotDeselection(plot PlotID) []int {
	return append([]int(nil), c.byPlot[plot]...)
}

// Deselected returns the global deselected set in ascending order: the
// intersection of every non-empty plot contribution. With no non-empty
// contribution the result is empty.
func (c Coordinator) Deselected() []int {
	var acc map[int]struct{}
	for _, plot := range c.order {
		set := c.byPlot[plot]
		if len(set) == 0 {
			continue
		}
		if acc == nil {
			acc = make(map[int]struct{}, len(set))
			for _, i := range set {
				acc[i] = struct{}{}
			}
			continue
		}
		keep := make(map[int]struct{}, len(acc))
		for _, i := range set {
			if _, ok := acc[i]; ok {
				keep[i] = struct{}{}
			}
		}
		acc = keep
	}
	out := make([]int, 0, len(acc))
	for i := range acc {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// WithDefaults replaces the validity map with defaults and re-applies any
// manual overrides for clusters that are still present.
func (c Coordinator) WithDefaults(defaults domain.ValidClusters) Coordinator {
	next := c
	next.valid = defaults.Clone()
	for id, v := range c.overrides {
		if _, ok := next.valid[id]; ok {
			next.valid[id] = v
		}
	}
	return next
}

// SetClusterValid records a manual validity toggle.
func (c Coordinator) SetClusterValid(id domain.ClusterID, valid bool) Coordinator {
	next := c
	next.overrides = make(map[domain.ClusterID]bool, len(c.overrides)+1)
	for k, v := range c.overrides {
		next.overrides[k] = v
	}
	next.overrides[id] = valid
	next.valid = c.valid.Clone()
	next.valid[id] = valid
	return next
}

// ResetValidity forgets every validity value and override. Used when the
// cluster set itself changes.
func (c Coordinator) ResetValidity() Coordinator {
	next := c
	next.valid = nil
	next.overrides = nil
	return next
}

// ValidClusters returns a copy of the current validity map.
func (c Coordinator) ValidClusters() domain.ValidClusters {
	return c.valid.Clone()
}

// Valid reports whether id is currently valid.
func (c Coordinator) Valid(id domain.ClusterID) bool {
	return c.valid[id]
}

// Overridden reports whether id carries a manual toggle.
func (c Coordinator) Overridden(id domain.ClusterID) bool {
	_, ok := c.overrides[id]
	return ok
}

func normalize(indices []int) []int {
	seen := make(map[int]struct{}, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
