package core

import (
	"vaine/pkg/domain"
)

// PointAttributes is what a view needs to draw one observation.
type PointAttributes struct {
	Index      int              `json:"index"`
	Cluster    domain.ClusterID `json:"cluster"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Treatment  float64          `json:"treatment"`
	Outcome    float64          `json:"outcome"`
	Color      string           `json:"color"`
	Valid      bool             `json:"valid"`
	Deselected bool             `json:"deselected"`
	Excluded   bool             `json:"excluded"`
}

// RenderPoints returns the draw attributes of every observation in row order.
func (s *Session) RenderPoints() []PointAttributes {
	st := s.Snapshot()
	deselected := make(map[int]struct{}, len(st.deselected))
	for _, i := range st.deselected {
		deselected[i] = struct{}{}
	}
	out := make([]PointAttributes, len(st.observations))
	for i, o := range st.observations {
		_, desel := deselected[o.Index]
		out[i] = PointAttributes{
			Index:      o.Index,
			Cluster:    o.Cluster,
			X:          o.EmbeddingX,
			Y:          o.EmbeddingY,
			Treatment:  o.TreatmentValue,
			Outcome:    o.OutcomeValue,
			Color:      st.appearance.ColorOf(o.Cluster),
			Valid:      st.selection.Valid(o.Cluster),
			Deselected: desel,
			Excluded:   st.exclusions.Contains(st.pair, o.Index),
		}
	}
	return out
}

// ClusterDetail describes one cluster for an inspection view.
type ClusterDetail struct {
	ID         domain.ClusterID         `json:"id"`
	Name       domain.AppearanceEntry   `json:"name"`
	Color      domain.AppearanceEntry   `json:"color"`
	Valid      bool                     `json:"valid"`
	Overridden bool                     `json:"overridden"`
	Members    []int                    `json:"members"`
	Regression domain.ClusterRegression `json:"regression"`
}

// ClusterDetail returns the detail of id, or false when id is not a current
// cluster.
func (s *Session) ClusterDetail(id domain.ClusterID) (ClusterDetail, bool) {
	st := s.Snapshot()
	reg, ok := st.regressions[id]
	if !ok {
		return ClusterDetail{}, false
	}
	name, ok := st.appearance.Name(id)
	if !ok {
		name = domain.AppearanceEntry{Value: st.appearance.NameOf(id), Status: domain.StatusDefault}
	}
	color, _ := st.appearance.Color(id)
	members := make([]int, 0, len(st.cut.ByGroup[id]))
	for _, o := range st.observations {
		if o.Cluster == id {
			members = append(members, o.Index)
		}
	}
	return ClusterDetail{
		ID:         id,
		Name:       name,
		Color:      color,
		Valid:      st.selection.Valid(id),
		Overridden: st.selection.Overridden(id),
		Members:    members,
		Regression: cloneRegression(reg),
	}, true
}
