package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// stepPrefix marks observations and spans that belong to a recompute step
// rather than to a gesture.
const stepPrefix = "step."

// unscopedSession keys observations made outside any session.
const unscopedSession = "-"

var expvarSeq uint64

// GestureTotals aggregates one gesture type within a session. Steps counts
// how often each recompute step ran on behalf of the gesture.
type GestureTotals struct {
	Succeeded  int64            `json:"succeeded"`
	Failed     int64            `json:"failed"`
	DurationMS float64          `json:"duration_ms_total"`
	Steps      map[string]int64 `json:"steps,omitempty"`
}

// StepTotals aggregates one recompute step within a session.
type StepTotals struct {
	Runs       int64   `json:"runs"`
	Failed     int64   `json:"failed"`
	DurationMS float64 `json:"duration_ms_total"`
}

// SessionMetrics is the published view of one session.
type SessionMetrics struct {
	Gestures map[string]GestureTotals `json:"gestures"`
	Steps    map[string]StepTotals    `json:"steps"`
}

// ExpvarMetricsSnapshot is the published form of the recorder, keyed by
// session id.
type ExpvarMetricsSnapshot struct {
	Sessions   map[string]SessionMetrics `json:"sessions"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder publishes gesture and recompute-step totals per
// session under a single expvar name.
type ExpvarMetricsRecorder struct {
	name     string
	mu       sync.Mutex
	sessions map[string]*SessionMetrics
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a generated
// unique name when name is empty. expvar names are process global, so a name
// may only be used once.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("vaine_sessions_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, sessions: make(map[string]*SessionMetrics)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder. Step observations are attributed to the
// gesture carried by ctx.
func (r *ExpvarMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	id := SessionIDFromContext(ctx)
	if id == "" {
		id = unscopedSession
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	sm, ok := r.sessions[id]
	if !ok {
		sm = &SessionMetrics{Gestures: map[string]GestureTotals{}, Steps: map[string]StepTotals{}}
		r.sessions[id] = sm
	}

	if step, isStep := strings.CutPrefix(operation, stepPrefix); isStep {
		st := sm.Steps[step]
		st.Runs++
		if !success {
			st.Failed++
		}
		st.DurationMS += ms
		sm.Steps[step] = st
		if gesture := GestureFromContext(ctx); gesture != "" {
			g := sm.Gestures[gesture]
			if g.Steps == nil {
				g.Steps = map[string]int64{}
			}
			g.Steps[step]++
			sm.Gestures[gesture] = g
		}
		return
	}

	g := sm.Gestures[operation]
	if success {
		g.Succeeded++
	} else {
		g.Failed++
	}
	g.DurationMS += ms
	sm.Gestures[operation] = g
}

// Session returns the totals recorded for one session.
func (r *ExpvarMetricsRecorder) Session(id string) (SessionMetrics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sm, ok := r.sessions[id]
	if !ok {
		return SessionMetrics{}, false
	}
	return sm.clone(), true
}

// Snapshot returns a copy of every session's totals.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ExpvarMetricsSnapshot{
		Sessions:   make(map[string]SessionMetrics, len(r.sessions)),
		RecordedAt: time.Now().UTC(),
	}
	for id, sm := range r.sessions {
		out.Sessions[id] = sm.clone()
	}
	return out
}

func (sm *SessionMetrics) clone() SessionMetrics {
	out := SessionMetrics{
		Gestures: make(map[string]GestureTotals, len(sm.Gestures)),
		Steps:    make(map[string]StepTotals, len(sm.Steps)),
	}
	for name, g := range sm.Gestures {
		if g.Steps != nil {
			steps := make(map[string]int64, len(g.Steps))
			for k, v := range g.Steps {
				steps[k] = v
			}
			g.Steps = steps
		}
		out.Gestures[name] = g
	}
	for name, st := range sm.Steps {
		out.Steps[name] = st
	}
	return out
}

// JSONTraceEntry is one finished span as written by JSONTraceTracer. Step
// spans carry the gesture that triggered them.
type JSONTraceEntry struct {
	Session    string    `json:"session,omitempty"`
	Gesture    string    `json:"gesture,omitempty"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them in memory.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewJSONTracer builds a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// StepsFor returns, in order, the recompute steps recorded for gesture in
// session.
func (t *JSONTraceTracer) StepsFor(session, gesture string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var steps []string
	for _, e := range t.entries {
		if e.Session != session || e.Gesture != gesture {
			continue
		}
		if step, ok := strings.CutPrefix(e.Operation, stepPrefix); ok {
			steps = append(steps, step)
		}
	}
	return steps
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	entry := JSONTraceEntry{
		Session:   SessionIDFromContext(ctx),
		Operation: operation,
		StartedAt: t.now(),
	}
	if strings.HasPrefix(operation, stepPrefix) {
		entry.Gesture = GestureFromContext(ctx)
	}
	return ctx, &jsonTraceSpan{tracer: t, entry: entry}
}

type jsonTraceSpan struct {
	tracer *JSONTraceTracer
	entry  JSONTraceEntry
}

func (s *jsonTraceSpan) End(err error) {
	e := s.entry
	e.Status = "success"
	if err != nil {
		e.Status = "error"
		e.Error = err.Error()
	}
	e.EndedAt = s.tracer.now()
	e.DurationMS = float64(e.EndedAt.Sub(e.StartedAt)) / float64(time.Millisecond)

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, e)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(e)
	}
}
