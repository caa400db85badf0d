package contextkeys

import "context"

const traceIDKey contextKey = "trace_id"

// ContextWithTraceID returns a child context carrying the run/request trace id.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace id, or "" when none was set.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}
