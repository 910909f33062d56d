package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaine/pkg/domain"
)

const sampleInput = `{
  "data": [
    {"index": 10, "age": 20, "dose": 1, "income": 10, "region": 1, "label": "a"},
    {"index": 11, "age": 30, "dose": 2, "income": 12, "region": 1},
    {"index": 12, "age": 40, "dose": 3, "income": 14, "region": 2}
  ],
  "treatments": ["age", "dose"],
  "outcomes": ["income"],
  "ignore": ["region"],
  "latentRepresentation": {
    "age":  {"parents": [3, 3, 4, 4, 4], "points": [[0, 1], [1, 1], [2, 2]]},
    "dose": {"parents": [3, 3, 4, 4, 4], "points": [{"x": 5, "y": 6}, {"x": 7, "y": 8}, {"x": 9, "y": 1}]}
  }
}`

func TestDecodeAndAssemble(t *testing.T) {
	in, err := Decode(strings.NewReader(sampleInput))
	require.NoError(t, err)
	assert.True(t, in.HasTreatment("dose"))
	assert.False(t, in.HasTreatment("income"))
	assert.True(t, in.HasOutcome("income"))
	assert.Empty(t, in.CovariateColumns())

	cut := domain.ClusterCut{ByPoint: []domain.ClusterID{3, 3, 2}}
	obs, err := Assemble(in, domain.NewPairKey("age", "income"), cut)
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, domain.Observation{
		Index: 12, Cluster: 2, TreatmentValue: 40, OutcomeValue: 14, EmbeddingX: 2, EmbeddingY: 2,
	}, obs[2])

	obs, err = Assemble(in, domain.NewPairKey("dose", "income"), cut)
	require.NoError(t, err)
	assert.Equal(t, 7.0, obs[1].EmbeddingX)
	assert.Equal(t, 2.0, obs[1].TreatmentValue)
}

func TestCovariateColumnsDerived(t *testing.T) {
	in := Input{
		Data: []domain.RawRow{
			{Index: 0, Values: map[string]float64{"t": 1, "o": 2, "c1": 3, "skip": 4}},
			{Index: 1, Values: map[string]float64{"t": 1, "o": 2, "c2": 3}},
		},
		Treatments: []string{"t"},
		Outcomes:   []string{"o"},
		Ignore:     []string{"skip"},
	}
	assert.Equal(t, []string{"c1", "c2"}, in.CovariateColumns())

	in.Covariates = []string{"c2"}
	assert.Equal(t, []string{"c2"}, in.CovariateColumns())
}

func TestAssembleCopiesCovariates(t *testing.T) {
	in := Input{
		Data: []domain.RawRow{
			{Index: 0, Values: map[string]float64{"t": 1, "o": 2, "c": 3}},
		},
		Treatments:           []string{"t"},
		Outcomes:             []string{"o"},
		LatentRepresentation: map[string]domain.LatentRepresentation{"t": {Parents: domain.MergeTree{0}, Points: []domain.Point{{}}}},
	}
	obs, err := Assemble(in, domain.NewPairKey("t", "o"), domain.ClusterCut{ByPoint: []domain.ClusterID{0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"c": 3}, obs[0].Covariates)

	_, err = Assemble(in, domain.NewPairKey("nope", "o"), domain.ClusterCut{ByPoint: []domain.ClusterID{0}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Assemble(in, domain.NewPairKey("t", "o"), domain.ClusterCut{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeFillsMissingIndices(t *testing.T) {
	doc := `{"data":[{"t":1},{"t":2},{"t":3}],"treatments":["t"],"outcomes":["o"],
	"latentRepresentation":{"t":{"parents":[3,3,4,4,4],"points":[[0,0],[0,0],[0,0]]}}}`
	in, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	for i, row := range in.Data {
		assert.Equal(t, i, row.Index)
	}
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"no rows":         `{"data":[],"treatments":["t"],"outcomes":["o"]}`,
		"no treatments":   `{"data":[{"t":1}],"outcomes":["o"]}`,
		"no outcomes":     `{"data":[{"t":1}],"treatments":["t"]}`,
		"missing latent":  `{"data":[{"t":1}],"treatments":["t"],"outcomes":["o"]}`,
		"duplicate index": `{"data":[{"index":1},{"index":1}],"treatments":["t"],"outcomes":["o"],"latentRepresentation":{"t":{"parents":[2,2,2],"points":[[0,0],[0,0]]}}}`,
		"leaf mismatch":   `{"data":[{"t":1}],"treatments":["t"],"outcomes":["o"],"latentRepresentation":{"t":{"parents":[2,2,2],"points":[[0,0]]}}}`,
		"point mismatch":  `{"data":[{"t":1}],"treatments":["t"],"outcomes":["o"],"latentRepresentation":{"t":{"parents":[0],"points":[]}}}`,
		"bad point":       `{"data":[{"t":1}],"treatments":["t"],"outcomes":["o"],"latentRepresentation":{"t":{"parents":[0],"points":[[1,2,3]]}}}`,
		"fractional idx":  `{"data":[{"index":1.5}],"treatments":["t"],"outcomes":["o"]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("index, age,income,name\n7,20,10,x\n8,30,,y\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.RawRow{Index: 7, Values: map[string]float64{"age": 20, "income": 10}}, rows[0])
	assert.Equal(t, domain.RawRow{Index: 8, Values: map[string]float64{"age": 30}}, rows[1])

	rows, err = ReadCSV(strings.NewReader("a,b\n1,2\n3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, rows[1].Index)

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
