package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}

// WithTraceContext attaches a fresh trace ID and a trace-scoped logger to
// the context. Handlers pull the logger back out with FromContext.
func WithTraceContext(ctx context.Context, root zerolog.Logger) (context.Context, zerolog.Logger) {
	traceID := GenerateTraceID()
	logger := root.With().Str("trace_id", traceID).Logger()
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = logger.WithContext(ctx)
	return ctx, logger
}

// TraceID returns the trace ID stored in the context, or "".
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext retrieves the context's logger. Outside a traced request this
// is zerolog's default context logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
