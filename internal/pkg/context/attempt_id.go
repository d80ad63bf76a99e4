package context

import "context"

type contextKey string

const attemptIDKey contextKey = "attempt_id"

// WithAttemptID injects ID
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey, id)
}

// GetAttemptID extracts ID
func GetAttemptID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(attemptIDKey).(string); ok {
		return id
	}
	return ""
}
