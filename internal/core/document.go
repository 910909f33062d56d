package core

import (
	"strconv"

	"vaine/pkg/domain"
)

// ExportDocument assembles the saved summary of the current analysis from a
// single snapshot.
func (s *Session) ExportDocument() domain.AnalysisDocument {
	st := s.Snapshot()
	doc := domain.AnalysisDocument{
		Treatment:    st.pair.Treatment,
		Outcome:      st.pair.Outcome,
		Clusters:     make([]domain.ClusterReport, 0, len(st.clusterIDs)),
		ATESelected:  domain.Number(st.ateSelected),
		ATENone:      domain.Number(s.noClusterATE(st)),
		ATEAll:       domain.Number(st.ateAll),
		ClusterCount: st.clusters,
		Threshold:    st.alpha,
	}
	for _, id := range st.clusterIDs {
		reg := st.regressions[id]
		status := domain.ClusterDeselected
		if st.selection.Valid(id) {
			status = domain.ClusterSelected
		}
		doc.Clusters = append(doc.Clusters, domain.ClusterReport{
			Name:       strconv.Itoa(int(id)),
			CustomName: st.appearance.NameOf(id),
			Status:     status,
			Included:   cloneObservations(reg.Included),
			Excluded:   cloneObservations(reg.Excluded),
			RValue:     domain.Number(reg.RValue),
			PValue:     domain.Number(reg.PValue),
			Slope:      domain.Number(reg.Slope),
			Intercept:  domain.Number(reg.Intercept),
		})
	}
	return doc
}
