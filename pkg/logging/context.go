package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// CorrelationIDField is the log field carrying the request correlation ID.
const CorrelationIDField = "correlation_id"

type correlationIDKey struct{}

// WithCorrelationID stores the request correlation ID in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the correlation ID stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Annotate adds the correlation ID from ctx (if any) to a component logger.
func Annotate(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := CorrelationID(ctx); id != "" {
		return logger.With().Str(CorrelationIDField, id).Logger()
	}
	return logger
}
