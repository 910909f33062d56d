// Package dataset decodes analysis inputs and assembles the per-pair
// observation table consumed by the statistics engine.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"vaine/pkg/domain"
)

var (
	// ErrInvalidInput wraps every structural problem found in an Input.
	ErrInvalidInput = errors.New("dataset: invalid input")
)

// Input is the document handed over by the host: raw rows, the column roles,
// and one latent representation per treatment column.
type Input struct {
	Data                 []domain.RawRow                        `json:"data"`
	Covariates           []string                               `json:"covariates,omitempty"`
	Treatments           []string                               `json:"treatments"`
	Outcomes             []string                               `json:"outcomes"`
	Ignore               []string                               `json:"ignore,omitempty"`
	LatentRepresentation map[string]domain.LatentRepresentation `json:"latentRepresentation"`
}

// Decode reads an Input from JSON and validates it.
func Decode(r io.Reader) (Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("%w: decode: %v", ErrInvalidInput, err)
	}
	in.fillIndices()
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// LoadFile decodes the Input stored at path.
func LoadFile(path string) (Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return Input{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// fillIndices gives rows without an explicit index their position.
func (in *Input) fillIndices() {
	for i := range in.Data {
		if in.Data[i].Index < 0 {
			in.Data[i].Index = i
		}
	}
}

// Validate checks column roles, row indices and the shape of every latent
// representation. Merge-tree structure itself is checked by the cutter.
func (in Input) Validate() error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidInput)
	}
	if len(in.Treatments) == 0 {
		return fmt.Errorf("%w: no treatments", ErrInvalidInput)
	}
	if len(in.Outcomes) == 0 {
		return fmt.Errorf("%w: no outcomes", ErrInvalidInput)
	}
	seen := make(map[int]struct{}, len(in.Data))
	for pos, row := range in.Data {
		if _, dup := seen[row.Index]; dup {
			return fmt.Errorf("%w: duplicate row index %d at position %d", ErrInvalidInput, row.Index, pos)
		}
		seen[row.Index] = struct{}{}
	}
	for _, t := range in.Treatments {
		latent, ok := in.LatentRepresentation[t]
		if !ok {
			return fmt.Errorf("%w: no latent representation for treatment %q", ErrInvalidInput, t)
		}
		if leaves := latent.Parents.Leaves(); leaves != len(in.Data) || len(latent.Parents) == 0 {
			return fmt.Errorf("%w: treatment %q tree has %d leaves for %d rows", ErrInvalidInput, t, leaves, len(in.Data))
		}
		if len(latent.Points) != len(in.Data) {
			return fmt.Errorf("%w: treatment %q has %d embedding points for %d rows", ErrInvalidInput, t, len(latent.Points), len(in.Data))
		}
	}
	return nil
}

// HasTreatment reports whether key is a declared treatment column.
func (in Input) HasTreatment(key string) bool {
	return contains(in.Treatments, key)
}

// HasOutcome reports whether key is a declared outcome column.
func (in Input) HasOutcome(key string) bool {
	return contains(in.Outcomes, key)
}

// CovariateColumns returns the declared covariates, or when none were
// declared every numeric column that is not a treatment, outcome or ignored.
func (in Input) CovariateColumns() []string {
	if len(in.Covariates) > 0 {
		return append([]string(nil), in.Covariates...)
	}
	skip := make(map[string]struct{})
	for _, group := range [][]string{in.Treatments, in.Outcomes, in.Ignore} {
		for _, c := range group {
			skip[c] = struct{}{}
		}
	}
	set := make(map[string]struct{})
	for _, row := range in.Data {
		for c := range row.Values {
			if _, ok := skip[c]; !ok {
				set[c] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, key string) bool {
	for _, v := range list {
		if v == key {
			return true
		}
	}
	return false
}
