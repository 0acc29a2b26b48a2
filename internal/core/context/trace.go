package context

import (
	"context"

	"github.com/google/uuid"
)

// Trace identifies the HTTP request or background task an operation runs for.
type Trace struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceKey struct{}

// WithTrace stores the trace in ctx.
func WithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFrom returns the trace stored in ctx, or nil.
func TraceFrom(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey{}).(*Trace)
	return t
}

// TaskTrace starts a trace for a queued task; the task id stands in for the
// request id.
func TaskTrace(taskID string) *Trace {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	return &Trace{TraceID: uuid.NewString(), RequestID: taskID}
}
