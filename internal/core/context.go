package core

import "context"

type (
	sessionIDKey struct{}
	gestureKey   struct{}
)

// openGesture names the initial recompute run by NewSession.
const openGesture = "open"

// WithSessionID tags ctx with a session id for tracing.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session id carried by ctx, if any.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// WithGesture tags ctx with the gesture whose recompute is running, so that
// step observations can be attributed to it.
func WithGesture(ctx context.Context, gesture string) context.Context {
	return context.WithValue(ctx, gestureKey{}, gesture)
}

// GestureFromContext returns the gesture carried by ctx, if any.
func GestureFromContext(ctx context.Context) string {
	g, _ := ctx.Value(gestureKey{}).(string)
	return g
}
