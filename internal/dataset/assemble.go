package dataset

import (
	"fmt"

	"vaine/pkg/domain"
)

// Assemble binds every raw row to the pair's treatment and outcome values,
// its cluster label from cut, and its embedding coordinate. Row i is leaf i
// of the merge tree. Missing column values read as zero.
func Assemble(in Input, pair domain.PairKey, cut domain.ClusterCut) ([]domain.Observation, error) {
	latent, ok := in.LatentRepresentation[pair.Treatment]
	if !ok {
		return nil, fmt.Errorf("%w: no latent representation for treatment %q", ErrInvalidInput, pair.Treatment)
	}
	if len(cut.ByPoint) != len(in.Data) {
		return nil, fmt.Errorf("%w: cut covers %d leaves for %d rows", ErrInvalidInput, len(cut.ByPoint), len(in.Data))
	}
	covariates := in.CovariateColumns()
	out := make([]domain.Observation, len(in.Data))
	for i, row := range in.Data {
		obs := domain.Observation{
			Index:          row.Index,
			Cluster:        cut.ByPoint[i],
			TreatmentValue: row.Values[pair.Treatment],
			OutcomeValue:   row.Values[pair.Outcome],
			EmbeddingX:     latent.Points[i].X,
			EmbeddingY:     latent.Points[i].Y,
		}
		if len(covariates) > 0 {
			obs.Covariates = make(map[string]float64, len(covariates))
			for _, c := range covariates {
				if v, ok := row.Values[c]; ok {
					obs.Covariates[c] = v
				}
			}
		}
		out[i] = obs
	}
	return out, nil
}
