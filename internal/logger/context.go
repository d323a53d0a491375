package logger

import "context"

type requestLoggerKey struct{}

// WithContext stores the per-request logger the API middleware builds, so
// handlers log with the request id attached.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey{}, l)
}

// FromContext returns the request logger in ctx, falling back to base and
// then to a no-op logger.
func FromContext(ctx context.Context, base Logger) Logger {
	if l, ok := ctx.Value(requestLoggerKey{}).(Logger); ok {
		return l
	}
	if base != nil {
		return base
	}
	return NewNop()
}
