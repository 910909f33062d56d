package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vaine/internal/dataset"
	"vaine/pkg/domain"
)

// fixtureTree is a balanced tree over eight leaves. Cut in two it yields
// cluster 12 (rows 0-3) and cluster 13 (rows 4-7).
var fixtureTree = domain.MergeTree{8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14, 14}

// fixtureInput has y = 2t on rows 0-3 and y = 10 - t on rows 4-7, and
// y2 = 3t everywhere.
func fixtureInput() dataset.Input {
	ts := []float64{1, 2, 3, 4, 1, 2, 3, 4}
	ys := []float64{2, 4, 6, 8, 9, 8, 7, 6}
	rows := make([]domain.RawRow, len(ts))
	points := make([]domain.Point, len(ts))
	for i := range ts {
		rows[i] = domain.RawRow{Index: i, Values: map[string]float64{
			"t":   ts[i],
			"t2":  float64(i),
			"y":   ys[i],
			"y2":  3 * ts[i],
			"age": float64(20 + i),
		}}
		points[i] = domain.Point{X: float64(i), Y: float64(2 * i)}
	}
	return dataset.Input{
		Data:       rows,
		Treatments: []string{"t", "t2"},
		Outcomes:   []string{"y", "y2"},
		LatentRepresentation: map[string]domain.LatentRepresentation{
			"t":  {Parents: fixtureTree, Points: points},
			"t2": {Parents: fixtureTree, Points: points},
		},
	}
}

func newFixtureSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithClusterCount(2), WithID("fixture")}, opts...)
	s, err := NewSession(fixtureInput(), opts...)
	require.NoError(t, err)
	return s
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetrics) reset() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}

// steps returns the recompute steps observed since the last reset.
func (c *captureMetrics) steps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, call := range c.calls {
		if name, ok := strings.CutPrefix(call.op, "step."); ok {
			out = append(out, name)
		}
	}
	return out
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

var fixtureTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
