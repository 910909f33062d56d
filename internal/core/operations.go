package core

import (
	"context"
	"fmt"

	"vaine/internal/cluster"
	"vaine/internal/selection"
	"vaine/pkg/domain"
)

// SetClusterCount re-cuts the merge tree into n clusters. Manual validity
// toggles are dropped because the cluster set changes.
func (s *Session) SetClusterCount(ctx context.Context, n int) error {
	return s.apply(ctx, "set_cluster_count", func(d *State) (slice, error) {
		leaves := len(s.input.Data)
		if n < 1 || n > leaves {
			return 0, fmt.Errorf("%w: %d not in [1, %d]", cluster.ErrClusterCount, n, leaves)
		}
		if n == d.clusters {
			return 0, nil
		}
		d.clusters = n
		return inClusterCount, nil
	})
}

// SetThreshold changes the significance threshold and re-defaults validity.
// Manual toggles are kept.
func (s *Session) SetThreshold(ctx context.Context, alpha float64) error {
	return s.apply(ctx, "set_threshold", func(d *State) (slice, error) {
		if err := checkThreshold(alpha); err != nil {
			return 0, err
		}
		if alpha == d.alpha {
			return 0, nil
		}
		d.alpha = alpha
		return inThreshold, nil
	})
}

// SelectTreatment switches the treatment column and its merge tree.
func (s *Session) SelectTreatment(ctx context.Context, key string) error {
	return s.apply(ctx, "select_treatment", func(d *State) (slice, error) {
		if !s.input.HasTreatment(key) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownTreatment, key)
		}
		if key == d.pair.Treatment {
			return 0, nil
		}
		d.pair.Treatment = key
		return inTreatment, nil
	})
}

// SelectOutcome switches the outcome column. The clusters stay, validity is
// re-defaulted.
func (s *Session) SelectOutcome(ctx context.Context, key string) error {
	return s.apply(ctx, "select_outcome", func(d *State) (slice, error) {
		if !s.input.HasOutcome(key) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownOutcome, key)
		}
		if key == d.pair.Outcome {
			return 0, nil
		}
		d.pair.Outcome = key
		d.selection = d.selection.ResetValidity()
		return inOutcome, nil
	})
}

// SetPlotDeselection records the indices plot does not have brushed. In
// replace mode every other plot's contribution is discarded. An empty plot id
// is ignored.
func (s *Session) SetPlotDeselection(ctx context.Context, plot selection.PlotID, indices []int, union bool) error {
	return s.apply(ctx, "set_plot_deselection", func(d *State) (slice, error) {
		if plot == "" {
			return 0, nil
		}
		d.selection = d.selection.SetPlotDeselection(plot, indices, union)
		return inDeselection, nil
	})
}

// ClearPlot drops plot's contribution to the deselection.
func (s *Session) ClearPlot(ctx context.Context, plot selection.PlotID) error {
	return s.apply(ctx, "clear_plot", func(d *State) (slice, error) {
		if len(d.selection.PlotDeselection(plot)) == 0 {
			return 0, nil
		}
		d.selection = d.selection.ClearPlot(plot)
		return inDeselection, nil
	})
}

// SetClusterValid manually toggles whether id counts toward the selected ATE.
func (s *Session) SetClusterValid(ctx context.Context, id domain.ClusterID, valid bool) error {
	return s.apply(ctx, "set_cluster_valid", func(d *State) (slice, error) {
		if _, ok := d.regressions[id]; !ok {
			return 0, fmt.Errorf("%w: %d", ErrUnknownCluster, id)
		}
		if d.selection.Overridden(id) && d.selection.Valid(id) == valid {
			return 0, nil
		}
		d.selection = d.selection.SetClusterValid(id, valid)
		return inValidity, nil
	})
}

// ExcludeSelection excludes, for the current pair, every included point that
// is not globally deselected, i.e. the points the views have brushed. It does
// nothing while no view reports a deselection.
func (s *Session) ExcludeSelection(ctx context.Context) error {
	return s.apply(ctx, "exclude_selection", func(d *State) (slice, error) {
		if len(d.deselected) == 0 {
			return 0, nil
		}
		deselected := make(map[int]struct{}, len(d.deselected))
		for _, i := range d.deselected {
			deselected[i] = struct{}{}
		}
		var brushed []domain.Observation
		for _, id := range d.clusterIDs {
			for _, o := range d.regressions[id].Included {
				if _, ok := deselected[o.Index]; !ok {
					brushed = append(brushed, o)
				}
			}
		}
		if len(brushed) == 0 {
			return 0, nil
		}
		d.exclusions = d.exclusions.Exclude(d.pair, brushed...)
		return inCurrentExclusions, nil
	})
}

// Exclude excludes the points with the given indices for the current pair.
// Unknown indices are ignored.
func (s *Session) Exclude(ctx context.Context, indices ...int) error {
	return s.apply(ctx, "exclude", func(d *State) (slice, error) {
		wanted := make(map[int]struct{}, len(indices))
		for _, i := range indices {
			wanted[i] = struct{}{}
		}
		var points []domain.Observation
		for _, o := range d.observations {
			if _, ok := wanted[o.Index]; ok && !d.exclusions.Contains(d.pair, o.Index) {
				points = append(points, o)
			}
		}
		if len(points) == 0 {
			return 0, nil
		}
		d.exclusions = d.exclusions.Exclude(d.pair, points...)
		return inCurrentExclusions, nil
	})
}

// Include puts one excluded point of pair back. Only a change to the current
// pair triggers a recompute.
func (s *Session) Include(ctx context.Context, pair domain.PairKey, index int) error {
	return s.apply(ctx, "include", func(d *State) (slice, error) {
		if !d.exclusions.Contains(pair, index) {
			return 0, nil
		}
		d.exclusions = d.exclusions.Include(pair, index)
		if pair == d.pair {
			return inCurrentExclusions, nil
		}
		return inOtherExclusions, nil
	})
}

// SetClusterColor records a custom color for id. Empty values are ignored.
func (s *Session) SetClusterColor(ctx context.Context, id domain.ClusterID, color string) error {
	return s.apply(ctx, "set_cluster_color", func(d *State) (slice, error) {
		if color == "" {
			return 0, nil
		}
		d.appearance = d.appearance.SetColor(id, color)
		return inAppearance, nil
	})
}

// SetClusterName records a custom name for id. Empty values are ignored.
func (s *Session) SetClusterName(ctx context.Context, id domain.ClusterID, name string) error {
	return s.apply(ctx, "set_cluster_name", func(d *State) (slice, error) {
		if name == "" {
			return 0, nil
		}
		d.appearance = d.appearance.SetName(id, name)
		return inAppearance, nil
	})
}
