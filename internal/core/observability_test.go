package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONTracerRecordsOperationsAndSteps(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	s := newFixtureSession(t, WithTracer(tracer))

	require.NoError(t, s.SetThreshold(context.Background(), 0.2))
	require.Error(t, s.SelectOutcome(context.Background(), "missing"))

	var ops []string
	for _, e := range tracer.Entries() {
		ops = append(ops, e.Operation)
		if e.Operation == "set_threshold" {
			assert.Equal(t, "fixture", e.Session)
			assert.Equal(t, "success", e.Status)
		}
		if e.Operation == "select_outcome" {
			assert.Equal(t, "error", e.Status)
			assert.Contains(t, e.Error, "unknown outcome")
		}
	}
	assert.Contains(t, ops, "step.cut")
	assert.Contains(t, ops, "step.validity")
	assert.Contains(t, ops, "set_threshold")
	assert.Contains(t, ops, "select_outcome")
	assert.Equal(t, []string{"validity", "ate"}, tracer.StepsFor("fixture", "set_threshold"))
	assert.Contains(t, tracer.StepsFor("fixture", openGesture), "cut")
	assert.Empty(t, tracer.StepsFor("fixture", "select_outcome"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, len(tracer.Entries()))
	var first JSONTraceEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.NotEmpty(t, first.Operation)
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	require.NotNil(t, expvar.Get(rec.Name()))

	ctx := WithSessionID(context.Background(), "s1")
	rec.Observe(ctx, "set_threshold", true, 2*time.Millisecond)
	rec.Observe(ctx, "set_threshold", false, time.Millisecond)
	rec.Observe(WithGesture(ctx, "set_threshold"), "step.validity", true, time.Millisecond)
	rec.Observe(context.Background(), "set_threshold", true, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	snap := rec.Snapshot()
	require.Len(t, snap.Sessions, 2)
	s1 := snap.Sessions["s1"]
	g := s1.Gestures["set_threshold"]
	assert.Equal(t, int64(1), g.Succeeded)
	assert.Equal(t, int64(1), g.Failed)
	assert.InDelta(t, 3.0, g.DurationMS, 1e-9)
	assert.Equal(t, map[string]int64{"validity": 1}, g.Steps)
	assert.Equal(t, StepTotals{Runs: 1, DurationMS: 1}, s1.Steps["validity"])
	assert.Equal(t, int64(1), snap.Sessions[unscopedSession].Gestures["set_threshold"].Succeeded)

	var published ExpvarMetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &published))
	assert.Contains(t, published.Sessions, "s1")
}

func TestExpvarRecorderAttributesStepsToGestures(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	s := newFixtureSession(t, WithMetrics(rec))
	require.NoError(t, s.SetThreshold(context.Background(), 0.2))
	require.Error(t, s.SelectOutcome(context.Background(), "missing"))

	sm, ok := rec.Session("fixture")
	require.True(t, ok)
	open := sm.Gestures[openGesture]
	assert.Equal(t, int64(1), open.Steps["cut"])
	assert.Equal(t, int64(1), open.Steps["deselected"])

	threshold := sm.Gestures["set_threshold"]
	assert.Equal(t, int64(1), threshold.Succeeded)
	assert.Equal(t, map[string]int64{"validity": 1, "ate": 1}, threshold.Steps)

	outcome := sm.Gestures["select_outcome"]
	assert.Equal(t, int64(1), outcome.Failed)
	assert.Empty(t, outcome.Steps)

	assert.Equal(t, int64(2), sm.Steps["validity"].Runs)
	assert.Equal(t, int64(1), sm.Steps["cut"].Runs)

	_, ok = rec.Session("other")
	assert.False(t, ok)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	s := newFixtureSession(t, WithMetrics(MultiRecorder{rec, nil}))

	require.NoError(t, s.SetThreshold(context.Background(), 0.2))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.total.WithLabelValues("set_threshold", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.total.WithLabelValues("step.validity", "success")))

	count, err := testutil.GatherAndCount(reg, "vaine_session_operation_duration_seconds")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestNoopObservabilityDefaults(t *testing.T) {
	ctx, span := noopTracer{}.Start(context.Background(), "x")
	span.End(errors.New("ignored"))
	noopMetrics{}.Observe(ctx, "x", true, 0)
	assert.Equal(t, "", SessionIDFromContext(ctx))
	assert.Equal(t, "abc", SessionIDFromContext(WithSessionID(ctx, "abc")))
}
