package ctxutil

import "context"

type traceKey struct{}

// Trace identifies one inbound request across logs, spans and the detached
// work it starts.
type Trace struct {
	TraceID   string
	RequestID string
}

func WithTrace(ctx context.Context, tr Trace) context.Context {
	return context.WithValue(Default(ctx), traceKey{}, tr)
}

func TraceFrom(ctx context.Context) (Trace, bool) {
	if ctx == nil {
		return Trace{}, false
	}
	tr, ok := ctx.Value(traceKey{}).(Trace)
	return tr, ok
}

// TraceFields returns the trace ids of ctx as logger key/value pairs.
func TraceFields(ctx context.Context) []interface{} {
	tr, ok := TraceFrom(ctx)
	if !ok {
		return nil
	}
	out := make([]interface{}, 0, 4)
	if tr.TraceID != "" {
		out = append(out, "trace_id", tr.TraceID)
	}
	if tr.RequestID != "" {
		out = append(out, "request_id", tr.RequestID)
	}
	return out
}
