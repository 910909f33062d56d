package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaine/internal/appearance"
	"vaine/internal/cluster"
	"vaine/internal/dataset"
	"vaine/internal/stats"
)

// slice is a bit set of state slices. Input bits are set by gestures; output
// bits are set by the step that produced them.
type slice uint32

const (
	inClusterCount slice = 1 << iota
	inTreatment
	inOutcome
	inThreshold
	inCurrentExclusions
	inOtherExclusions
	inDeselection
	inValidity
	inAppearance

	outCut
	outObservations
	outRegressions
	outValidity
	outATE
	outAppearance
	outDeselected
)

const allInputs = inClusterCount | inTreatment | inOutcome | inThreshold |
	inCurrentExclusions | inDeselection | inValidity | inAppearance

// step is one node of the recompute graph.
type step struct {
	name string
	deps slice
	out  slice
	run  func(*Session, *State) error
}

// pipeline lists the steps in dependency order. A step runs when any of its
// deps is dirty and then marks its own output dirty.
var pipeline = []step{
	{name: "cut", deps: inClusterCount | inTreatment, out: outCut, run: (*Session).runCut},
	{name: "observations", deps: outCut | inOutcome, out: outObservations, run: (*Session).runObservations},
	{name: "stats", deps: outObservations | inCurrentExclusions, out: outRegressions, run: (*Session).runStats},
	{name: "validity", deps: outRegressions | inThreshold, out: outValidity, run: (*Session).runValidity},
	{name: "ate", deps: outRegressions | outValidity | inValidity, out: outATE, run: (*Session).runATE},
	{name: "appearance", deps: outRegressions, out: outAppearance, run: (*Session).runAppearance},
	{name: "deselected", deps: inDeselection, out: outDeselected, run: (*Session).runDeselected},
}

// recompute runs every step reachable from dirty, in order, against draft.
// It returns the names of the steps that ran.
func (s *Session) recompute(ctx context.Context, draft *State, dirty slice) ([]string, error) {
	var ran []string
	for _, st := range pipeline {
		if dirty&st.deps == 0 {
			continue
		}
		stepCtx, span := s.tracer.Start(ctx, stepPrefix+st.name)
		started := s.clock.Now()
		err := st.run(s, draft)
		s.metrics.Observe(stepCtx, stepPrefix+st.name, err == nil, s.clock.Now().Sub(started))
		span.End(err)
		if err != nil {
			return ran, fmt.Errorf("%s: %w", st.name, err)
		}
		s.logger.Debug("recompute step",
			zap.String("step", st.name),
			zap.Stringer("pair", draft.pair),
			zap.Int("clusters", len(draft.clusterIDs)),
		)
		ran = append(ran, st.name)
		dirty |= st.out
	}
	return ran, nil
}

func (s *Session) runCut(d *State) error {
	latent := s.input.LatentRepresentation[d.pair.Treatment]
	cut, err := cluster.Cut(latent.Parents, d.clusters)
	if err != nil {
		return err
	}
	d.cut = cut
	d.clusterIDs = cut.IDs()
	d.selection = d.selection.ResetValidity()
	return nil
}

func (s *Session) runObservations(d *State) error {
	obs, err := dataset.Assemble(s.input, d.pair, d.cut)
	if err != nil {
		return err
	}
	d.observations = obs
	return nil
}

func (s *Session) runStats(d *State) error {
	d.regressions = stats.ComputeStats(d.observations, d.exclusions.Lookup(d.pair), d.clusterIDs)
	return nil
}

func (s *Session) runValidity(d *State) error {
	d.selection = d.selection.WithDefaults(stats.DefaultValidity(d.regressions, d.alpha))
	return nil
}

func (s *Session) runATE(d *State) error {
	d.ateAll = stats.ComputeATE(stats.FilterEvaluable(d.regressions))
	selected := stats.FilterValid(d.regressions, d.selection.ValidClusters())
	d.ateSelected = stats.ComputeATE(stats.FilterEvaluable(selected))
	return nil
}

func (s *Session) runAppearance(d *State) error {
	d.appearance = appearance.Assign(d.appearance, d.clusterIDs, appearance.Ordinal(d.clusterIDs, s.palette))
	return nil
}

func (s *Session) runDeselected(d *State) error {
	d.deselected = d.selection.Deselected()
	return nil
}
