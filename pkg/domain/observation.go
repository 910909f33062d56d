package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Observation is one assembled dataset row bound to the currently selected
// treatment/outcome pair. Observations are value records; the Cluster label is
// replaced wholesale whenever the merge tree is re-cut.
type Observation struct {
	Index          int                `json:"index"`
	Cluster        ClusterID          `json:"cluster"`
	TreatmentValue float64            `json:"treatment"`
	OutcomeValue   float64            `json:"outcome"`
	Covariates     map[string]float64 `json:"covariates,omitempty"`
	EmbeddingX     float64            `json:"x"`
	EmbeddingY     float64            `json:"y"`
}

// Clone returns a deep copy of the observation.
func (o Observation) Clone() Observation {
	out := o
	if o.Covariates != nil {
		out.Covariates = make(map[string]float64, len(o.Covariates))
		for k, v := range o.Covariates {
			out.Covariates[k] = v
		}
	}
	return out
}

// RawRow is one record of the tabular input keyed by column name. Index is the
// stable per-row identifier carried through every recompute.
type RawRow struct {
	Index  int
	Values map[string]float64
}

// UnmarshalJSON accepts a flat object of numeric columns with an optional
// "index" member. Non-numeric members are ignored.
func (r *RawRow) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Index = -1
	r.Values = make(map[string]float64, len(raw))
	for key, value := range raw {
		num, ok := value.(float64)
		if !ok {
			continue
		}
		if key == "index" {
			if num != math.Trunc(num) {
				return fmt.Errorf("row index %v is not an integer", num)
			}
			r.Index = int(num)
			continue
		}
		r.Values[key] = num
	}
	return nil
}

// MarshalJSON writes the row back as a flat object.
func (r RawRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out["index"] = r.Index
	return json.Marshal(out)
}

// Point is a 2-D embedding coordinate aligned with a merge-tree leaf.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UnmarshalJSON accepts either {"x":..,"y":..} or a two element array.
func (p *Point) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("embedding point needs 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	type plain Point
	var obj plain
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*p = Point(obj)
	return nil
}

// LatentRepresentation is the precomputed clustering input for one treatment:
// the merge tree and the embedding coordinates aligned by leaf index.
type LatentRepresentation struct {
	Parents MergeTree `json:"parents"`
	Points  []Point   `json:"points"`
}
