package core

import (
	"math"

	"vaine/internal/cluster"
	"vaine/internal/dataset"
	"vaine/internal/stats"
)

// NoClusterATE returns the unstratified estimate: the current treatment's tree
// cut into a single cluster, with the current pair's exclusions applied.
func (s *Session) NoClusterATE() float64 {
	return s.noClusterATE(s.Snapshot())
}

func (s *Session) noClusterATE(st *State) float64 {
	latent := s.input.LatentRepresentation[st.pair.Treatment]
	cut, err := cluster.Cut(latent.Parents, 1)
	if err != nil {
		return math.NaN()
	}
	obs, err := dataset.Assemble(s.input, st.pair, cut)
	if err != nil {
		return math.NaN()
	}
	regs := stats.ComputeStats(obs, st.exclusions.Lookup(st.pair), cut.IDs())
	return stats.ComputeATE(stats.FilterEvaluable(regs))
}
