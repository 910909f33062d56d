package domain

import (
	"fmt"
	"strings"
)

// PairKey identifies a treatment/outcome selection.
type PairKey struct {
	Treatment string
	Outcome   string
}

// NewPairKey builds a pair key.
func NewPairKey(treatment, outcome string) PairKey {
	return PairKey{Treatment: treatment, Outcome: outcome}
}

// String renders the key as "treatment|outcome".
func (k PairKey) String() string {
	return k.Treatment + "|" + k.Outcome
}

// MarshalText lets PairKey act as a JSON object key.
func (k PairKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "treatment|outcome" form.
func (k *PairKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePairKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePairKey parses "treatment|outcome".
func ParsePairKey(s string) (PairKey, error) {
	treatment, outcome, ok := strings.Cut(s, "|")
	if !ok || treatment == "" || outcome == "" {
		return PairKey{}, fmt.Errorf("invalid pair key %q", s)
	}
	return PairKey{Treatment: treatment, Outcome: outcome}, nil
}
