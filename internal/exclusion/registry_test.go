package exclusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaine/pkg/domain"
)

var (
	ageIncome = domain.NewPairKey("age", "income")
	ageHealth = domain.NewPairKey("age", "health")
)

func point(index int) domain.Observation {
	return domain.Observation{Index: index, Cluster: 1, TreatmentValue: float64(index), OutcomeValue: float64(2 * index)}
}

func TestExcludeAppendsAndDeduplicates(t *testing.T) {
	reg := New().Exclude(ageIncome, point(1), point(2))
	reg = reg.Exclude(ageIncome, point(2), point(3), point(3))

	got := reg.Lookup(ageIncome)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, indices(got))
	assert.True(t, reg.Contains(ageIncome, 3))
	assert.Equal(t, 3, reg.Len(ageIncome))
}

func TestExclusionsArePerPair(t *testing.T) {
	reg := New().Exclude(ageIncome, point(1))
	assert.True(t, reg.Contains(ageIncome, 1))
	assert.False(t, reg.Contains(ageHealth, 1))
	assert.Empty(t, reg.Lookup(ageHealth))
	assert.NotNil(t, reg.Lookup(ageHealth))
}

func TestIncludeRoundTrip(t *testing.T) {
	base := New().Exclude(ageIncome, point(1), point(2))

	t.Run("restores existing pair", func(t *testing.T) {
		after := base.Exclude(ageIncome, point(9)).Include(ageIncome, 9)
		assert.True(t, after.Equal(base))
	})
	t.Run("deletes emptied pair", func(t *testing.T) {
		after := base.Exclude(ageHealth, point(4)).Include(ageHealth, 4)
		assert.True(t, after.Equal(base))
		assert.NotContains(t, after.Keys(), ageHealth)
	})
	t.Run("from empty registry", func(t *testing.T) {
		after := New().Exclude(ageIncome, point(5)).Include(ageIncome, 5)
		assert.True(t, after.Equal(New()))
		assert.Empty(t, after.Keys())
	})
}

func TestIncludeUnknownIsNoop(t *testing.T) {
	reg := New().Exclude(ageIncome, point(1))
	assert.True(t, reg.Include(ageHealth, 1).Equal(reg))
	assert.True(t, reg.Include(ageIncome, 42).Equal(reg))
}

func TestRegistryIsImmutable(t *testing.T) {
	before := New().Exclude(ageIncome, point(1))
	after := before.Exclude(ageIncome, point(2)).Exclude(ageHealth, point(3))
	after = after.Include(ageIncome, 1)

	assert.Equal(t, []int{1}, indices(before.Lookup(ageIncome)))
	assert.Empty(t, before.Lookup(ageHealth))
	assert.Equal(t, []int{2}, indices(after.Lookup(ageIncome)))

	got := before.Lookup(ageIncome)
	got[0].Index = 77
	assert.True(t, before.Contains(ageIncome, 1))
}

func TestKeysSorted(t *testing.T) {
	reg := New().
		Exclude(domain.NewPairKey("z", "a"), point(1)).
		Exclude(domain.NewPairKey("a", "z"), point(1)).
		Exclude(domain.NewPairKey("a", "b"), point(1))
	assert.Equal(t, []domain.PairKey{
		{Treatment: "a", Outcome: "b"},
		{Treatment: "a", Outcome: "z"},
		{Treatment: "z", Outcome: "a"},
	}, reg.Keys())
}

func indices(obs []domain.Observation) []int {
	out := make([]int, len(obs))
	for i, o := range obs {
		out[i] = o.Index
	}
	return out
}
