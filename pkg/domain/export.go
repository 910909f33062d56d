package domain

import (
	"bytes"
	"math"
	"strconv"
)

// Number is a float64 that encodes NaN and infinities as JSON null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (n *Number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*n = Number(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ClusterStatus is the export form of cluster validity.
type ClusterStatus string

const (
	ClusterSelected   ClusterStatus = "selected"
	ClusterDeselected ClusterStatus = "deselected"
)

// ClusterReport is one cluster entry of an exported analysis.
type ClusterReport struct {
	Name       string        `json:"name"`
	CustomName string        `json:"customName"`
	Status     ClusterStatus `json:"status"`
	Included   []Observation `json:"included"`
	Excluded   []Observation `json:"excluded"`
	RValue     Number        `json:"rvalue"`
	PValue     Number        `json:"pvalue"`
	Slope      Number        `json:"slope"`
	Intercept  Number        `json:"intercept"`
}

// AnalysisDocument is the saved summary of one treatment/outcome analysis.
type AnalysisDocument struct {
	Treatment   string          `json:"treatment"`
	Outcome     string          `json:"outcome"`
	Clusters    []ClusterReport `json:"clusters"`
	ATESelected Number          `json:"ATE(selected clusters)"`
	ATENone     Number          `json:"ATE(no clusters)"`
	ATEAll      Number          `json:"ATE(all clusters)"`

	// ClusterCount and Threshold describe the session the document was taken
	// from. They are indexed by the export ledger and not serialized.
	ClusterCount int     `json:"-"`
	Threshold    float64 `json:"-"`
}

// Pair returns the document's treatment/outcome key.
func (d AnalysisDocument) Pair() PairKey {
	return NewPairKey(d.Treatment, d.Outcome)
}
