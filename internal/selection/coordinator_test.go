package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vaine/pkg/domain"
)

const (
	embedding PlotID = "embedding"
	lmplot    PlotID = "lmplot"
	pcp       PlotID = "pcp"
)

func TestNoContributionMeansNothingDeselected(t *testing.T) {
	assert.Empty(t, New().Deselected())
	assert.NotNil(t, New().Deselected())
}

func TestUnionIntersectsPlots(t *testing.T) {
	c := New().
		SetPlotDeselection(embedding, []int{1, 2, 3}, false).
		SetPlotDeselection(lmplot, []int{2, 3, 4}, true)
	assert.Equal(t, []int{2, 3}, c.Deselected())
	assert.Equal(t, []PlotID{embedding, lmplot}, c.Plots())
}

func TestReplaceClearsOtherPlots(t *testing.T) {
	c := New().
		SetPlotDeselection(embedding, []int{1, 2, 3}, false).
		SetPlotDeselection(lmplot, []int{2, 3, 4}, false)
	assert.Equal(t, []int{2, 3, 4}, c.Deselected())
	assert.Equal(t, []PlotID{lmplot}, c.Plots())
	assert.Nil(t, c.PlotDeselection(embedding))
}

func TestReplaceOnSamePlotOverwrites(t *testing.T) {
	c := New().
		SetPlotDeselection(embedding, []int{1, 2}, false).
		SetPlotDeselection(lmplot, []int{2}, true).
		SetPlotDeselection(embedding, []int{5}, false)
	assert.Equal(t, []int{5}, c.Deselected())
	assert.Equal(t, []PlotID{embedding}, c.Plots())
}

func TestEmptyContributionsAreSkipped(t *testing.T) {
	c := New().
		SetPlotDeselection(embedding, nil, false).
		SetPlotDeselection(lmplot, []int{4, 5}, true).
		SetPlotDeselection(pcp, []int{}, true)
	assert.Equal(t, []int{4, 5}, c.Deselected())
}

func TestThreeWayIntersection(t *testing.T) {
	c := New().
		SetPlotDeselection(embedding, []int{1, 2, 3, 4}, false).
		SetPlotDeselection(lmplot, []int{2, 3, 4}, true).
		SetPlotDeselection(pcp, []int{3, 4, 9, 4}, true)
	assert.Equal(t, []int{3, 4}, c.Deselected())
	assert.Equal(t, []int{3, 4, 9}, c.PlotDeselection(pcp))
}

func TestClearPlot(t *testing.T) {
	c := New().
		SetPlotDeselection(embedding, []int{1, 2}, false).
		SetPlotDeselection(lmplot, []int{2}, true)
	cleared := c.ClearPlot(lmplot)
	assert.Equal(t, []int{1, 2}, cleared.Deselected())
	assert.Equal(t, []int{2}, c.Deselected())
	assert.Equal(t, cleared, cleared.ClearPlot("unknown"))
}

func TestCoordinatorIsImmutable(t *testing.T) {
	base := New().SetPlotDeselection(embedding, []int{1, 2}, false)
	_ = base.SetPlotDeselection(lmplot, []int{2}, true)
	_ = base.SetPlotDeselection(pcp, []int{7}, false)
	assert.Equal(t, []int{1, 2}, base.Deselected())
	assert.Equal(t, []PlotID{embedding}, base.Plots())
}

func TestValidityOverridesSurviveDefaults(t *testing.T) {
	c := New().WithDefaults(domain.ValidClusters{1: true, 2: false, 3: false})
	c = c.SetClusterValid(2, true).SetClusterValid(1, false)
	assert.Equal(t, domain.ValidClusters{1: false, 2: true, 3: false}, c.ValidClusters())
	assert.True(t, c.Overridden(2))
	assert.False(t, c.Overridden(3))

	// threshold change recomputes defaults but keeps manual toggles
	c = c.WithDefaults(domain.ValidClusters{1: true, 2: false, 3: true})
	assert.Equal(t, domain.ValidClusters{1: false, 2: true, 3: true}, c.ValidClusters())

	c = c.ResetValidity().WithDefaults(domain.ValidClusters{1: true, 2: false})
	assert.Equal(t, domain.ValidClusters{1: true, 2: false}, c.ValidClusters())
	assert.False(t, c.Valid(99))
}

func TestValidityIndependentOfDeselection(t *testing.T) {
	c := New().WithDefaults(domain.ValidClusters{1: true}).
		SetPlotDeselection(embedding, []int{1}, false).
		SetPlotDeselection(lmplot, []int{3}, false)
	assert.True(t, c.Valid(1))
}
