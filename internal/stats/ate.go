package stats

import (
	"math"

	"vaine/pkg/domain"
)

// ComputeATE returns the average of cluster slopes weighted by included-point
// count. Every entry is in scope: callers filter out clusters they do not want,
// and a NaN slope in the input yields NaN. An empty input yields NaN.
func ComputeATE(regressions map[domain.ClusterID]domain.ClusterRegression) float64 {
	ids := make([]domain.ClusterID, 0, len(regressions))
	for id := range regressions {
		ids = append(ids, id)
	}
	// fixed summation order keeps the result bit-for-bit reproducible
	domain.SortClusterIDs(ids)

	var weighted, total float64
	for _, id := range ids {
		reg := regressions[id]
		w := float64(len(reg.Included))
		weighted += reg.Slope * w
		total += w
	}
	if total == 0 {
		return math.NaN()
	}
	return weighted / total
}
