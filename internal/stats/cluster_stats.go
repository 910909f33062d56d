package stats

import (
	"math"

	"vaine/pkg/domain"
)

// ComputeStats fits every cluster in clusterIDs. Observations whose index
// appears in exclusions are reported under Excluded and left out of the fit.
// The p-value compares the cluster's treatment sample against its outcome
// sample with a two-sample t-test; it is not a slope significance test.
// Inputs are not modified.
func ComputeStats(observations []domain.Observation, exclusions []domain.Observation, clusterIDs []domain.ClusterID) map[domain.ClusterID]domain.ClusterRegression {
	excluded := make(map[int]struct{}, len(exclusions))
	for _, e := range exclusions {
		excluded[e.Index] = struct{}{}
	}
	members := make(map[domain.ClusterID][]domain.Observation, len(clusterIDs))
	for _, id := range clusterIDs {
		members[id] = nil
	}
	for _, o := range observations {
		if _, tracked := members[o.Cluster]; tracked {
			members[o.Cluster] = append(members[o.Cluster], o)
		}
	}

	out := make(map[domain.ClusterID]domain.ClusterRegression, len(clusterIDs))
	for _, id := range clusterIDs {
		reg := domain.ClusterRegression{
			Included: []domain.Observation{},
			Excluded: []domain.Observation{},
		}
		for _, o := range members[id] {
			if _, ok := excluded[o.Index]; ok {
				reg.Excluded = append(reg.Excluded, o.Clone())
			} else {
				reg.Included = append(reg.Included, o.Clone())
			}
		}
		xs := make([]float64, len(reg.Included))
		ys := make([]float64, len(reg.Included))
		for i, o := range reg.Included {
			xs[i], ys[i] = o.TreatmentValue, o.OutcomeValue
		}
		fit := Regress(xs, ys)
		reg.Slope = fit.Slope
		reg.Intercept = fit.Intercept
		reg.RValue = fit.RValue
		reg.StandardError = fit.StandardError
		if math.IsNaN(fit.RValue) {
			reg.PValue = math.NaN()
		} else {
			_, reg.PValue = TTest(xs, ys)
		}
		out[id] = reg
	}
	return out
}

// DefaultValidity marks a cluster valid when its p-value is below alpha.
// Degenerate clusters are always invalid.
func DefaultValidity(regressions map[domain.ClusterID]domain.ClusterRegression, alpha float64) domain.ValidClusters {
	valid := make(domain.ValidClusters, len(regressions))
	for id, reg := range regressions {
		valid[id] = !reg.Degenerate() && reg.PValue < alpha
	}
	return valid
}

// FilterValid keeps the regressions whose cluster is marked valid.
func FilterValid(regressions map[domain.ClusterID]domain.ClusterRegression, valid domain.ValidClusters) map[domain.ClusterID]domain.ClusterRegression {
	out := make(map[domain.ClusterID]domain.ClusterRegression, len(regressions))
	for id, reg := range regressions {
		if valid[id] {
			out[id] = reg
		}
	}
	return out
}

// FilterEvaluable drops degenerate regressions.
func FilterEvaluable(regressions map[domain.ClusterID]domain.ClusterRegression) map[domain.ClusterID]domain.ClusterRegression {
	out := make(map[domain.ClusterID]domain.ClusterRegression, len(regressions))
	for id, reg := range regressions {
		if !math.IsNaN(reg.Slope) {
			out[id] = reg
		}
	}
	return out
}
