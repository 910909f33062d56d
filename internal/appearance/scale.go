package appearance

import "vaine/pkg/domain"

// Tableau10 is the ten-color categorical palette used for clusters.
var Tableau10 = []string{
	"#4e79a7", "#f28e2c", "#e15759", "#76b7b2", "#59a14f",
	"#edc949", "#af7aa1", "#ff9da7", "#9c755f", "#bab0ab",
}

// Ordinal returns a scale that maps the i-th id of domain to palette[i mod
// len(palette)]. Ids outside the domain are appended to it on first use, in
// the order they are requested, so repeated lookups stay stable. Sessions pass
// ids in ascending numeric order, so id 9 takes a color before id 10 even
// though "10" sorts first as text.
func Ordinal(ids []domain.ClusterID, palette []string) ColorScale {
	index := make(map[domain.ClusterID]int, len(ids))
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			index[id] = len(index)
		}
	}
	return func(id domain.ClusterID) string {
		if len(palette) == 0 {
			return ""
		}
		i, ok := index[id]
		if !ok {
			i = len(index)
			index[id] = i
		}
		return palette[i%len(palette)]
	}
}
