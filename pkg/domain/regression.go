package domain

import (
	"encoding/json"
	"math"
)

// ClusterRegression holds the per-cluster fit of outcome on treatment.
// Numeric fields are NaN when the cluster cannot be evaluated.
type ClusterRegression struct {
	Slope         float64
	Intercept     float64
	RValue        float64
	StandardError float64
	PValue        float64
	Included      []Observation
	Excluded      []Observation
}

// Degenerate reports whether the regression could not be computed.
func (r ClusterRegression) Degenerate() bool {
	return math.IsNaN(r.RValue)
}

// ValidClusters records which clusters count toward the selected ATE.
type ValidClusters map[ClusterID]bool

// Clone returns a copy of the map.
func (v ValidClusters) Clone() ValidClusters {
	out := make(ValidClusters, len(v))
	for k, b := range v {
		out[k] = b
	}
	return out
}

type regressionJSON struct {
	Slope         Number        `json:"slope"`
	Intercept     Number        `json:"intercept"`
	RValue        Number        `json:"rvalue"`
	StandardError Number        `json:"stderr"`
	PValue        Number        `json:"pvalue"`
	Included      []Observation `json:"included"`
	Excluded      []Observation `json:"excluded"`
}

// MarshalJSON encodes undefined statistics as null.
func (r ClusterRegression) MarshalJSON() ([]byte, error) {
	return json.Marshal(regressionJSON{
		Slope:         Number(r.Slope),
		Intercept:     Number(r.Intercept),
		RValue:        Number(r.RValue),
		StandardError: Number(r.StandardError),
		PValue:        Number(r.PValue),
		Included:      r.Included,
		Excluded:      r.Excluded,
	})
}

// UnmarshalJSON reads the form written by MarshalJSON; null reads as NaN.
func (r *ClusterRegression) UnmarshalJSON(b []byte) error {
	var raw regressionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = ClusterRegression{
		Slope:         float64(raw.Slope),
		Intercept:     float64(raw.Intercept),
		RValue:        float64(raw.RValue),
		StandardError: float64(raw.StandardError),
		PValue:        float64(raw.PValue),
		Included:      raw.Included,
		Excluded:      raw.Excluded,
	}
	return nil
}
