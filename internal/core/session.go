// Package core owns the analysis session: the current treatment/outcome
// selection, cluster count, threshold, exclusions, brush state and cluster
// appearance, and every value derived from them. Each gesture produces one
// complete State that replaces the previous one atomically.
package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaine/internal/appearance"
	"vaine/internal/dataset"
	"vaine/internal/exclusion"
	"vaine/internal/selection"
	"vaine/pkg/domain"
)

const (
	// DefaultClusterCount is the number of clusters a session starts with.
	DefaultClusterCount = 10
	// DefaultThreshold is the default significance threshold.
	DefaultThreshold = 0.05
)

// Option configures a Session.
type Option func(*options)

type options struct {
	id        string
	logger    *zap.Logger
	metrics   MetricsRecorder
	tracer    Tracer
	clock     Clock
	palette   []string
	clusters  int
	threshold float64
	pair      *domain.PairKey
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		clock:     ClockFunc(func() time.Time { return time.Now().UTC() }),
		palette:   appearance.Tableau10,
		clusters:  DefaultClusterCount,
		threshold: DefaultThreshold,
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock overrides the clock used to stamp states.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithPalette overrides the cluster color palette.
func WithPalette(colors []string) Option {
	return func(o *options) {
		if len(colors) > 0 {
			o.palette = append([]string(nil), colors...)
		}
	}
}

// WithClusterCount sets the initial number of clusters. Values larger than
// the number of rows are clamped.
func WithClusterCount(n int) Option {
	return func(o *options) { o.clusters = n }
}

// WithThreshold sets the initial significance threshold.
func WithThreshold(alpha float64) Option {
	return func(o *options) { o.threshold = alpha }
}

// WithPair sets the initial treatment/outcome. The first declared treatment
// and outcome are used otherwise.
func WithPair(pair domain.PairKey) Option {
	return func(o *options) { o.pair = &pair }
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// Session serializes gestures against one analysis input. Reads never block
// on writes: Snapshot returns the last published State.
type Session struct {
	id      string
	input   dataset.Input
	palette []string
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock

	mu    sync.Mutex
	state atomic.Pointer[State]
}

// NewSession validates input and runs the first full recompute.
func NewSession(input dataset.Input, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	s := &Session{
		id:      o.id,
		input:   input,
		palette: o.palette,
		logger:  o.logger.With(zap.String("session", o.id)),
		metrics: o.metrics,
		tracer:  o.tracer,
		clock:   o.clock,
	}

	pair := domain.NewPairKey(input.Treatments[0], input.Outcomes[0])
	if o.pair != nil {
		pair = *o.pair
	}
	if !input.HasTreatment(pair.Treatment) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTreatment, pair.Treatment)
	}
	if !input.HasOutcome(pair.Outcome) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, pair.Outcome)
	}
	if err := checkThreshold(o.threshold); err != nil {
		return nil, err
	}
	clusters := o.clusters
	if rows := len(input.Data); clusters > rows {
		s.logger.Warn("cluster count clamped to row count", zap.Int("requested", clusters), zap.Int("rows", rows))
		clusters = rows
	}

	initial := &State{
		pair:       pair,
		clusters:   clusters,
		alpha:      o.threshold,
		selection:  selection.New(),
		deselected: []int{},
		exclusions: exclusion.New(),
		appearance: appearance.NewBook(),
	}
	ctx := WithGesture(WithSessionID(context.Background(), s.id), openGesture)
	if _, err := s.recompute(ctx, initial, allInputs); err != nil {
		return nil, err
	}
	initial.version = 1
	initial.updatedAt = s.clock.Now()
	s.state.Store(initial)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Input returns the analysis input the session was built from.
func (s *Session) Input() dataset.Input { return s.input }

// Snapshot returns the current state.
func (s *Session) Snapshot() *State { return s.state.Load() }

// apply runs mutate against a copy of the current state, recomputes the
// slices it marked dirty and publishes the result. Nothing is published when
// mutate or a step fails, or when mutate reports no change.
func (s *Session) apply(ctx context.Context, operation string, mutate func(d *State) (slice, error)) (err error) {
	ctx = WithGesture(WithSessionID(ctx, s.id), operation)
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	defer func() {
		s.metrics.Observe(ctx, operation, err == nil, s.clock.Now().Sub(started))
		span.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.state.Load().clone()
	dirty, err := mutate(draft)
	if err != nil {
		s.logger.Warn("gesture rejected", zap.String("operation", operation), zap.Error(err))
		return err
	}
	if dirty == 0 {
		return nil
	}
	ran, err := s.recompute(ctx, draft, dirty)
	if err != nil {
		s.logger.Warn("recompute failed", zap.String("operation", operation), zap.Error(err))
		return err
	}
	draft.version++
	draft.updatedAt = s.clock.Now()
	s.state.Store(draft)
	s.logger.Debug("state published",
		zap.String("operation", operation),
		zap.Uint64("version", draft.version),
		zap.Strings("steps", ran),
	)
	return nil
}

func checkThreshold(alpha float64) error {
	if !(alpha > 0 && alpha <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, alpha)
	}
	return nil
}
