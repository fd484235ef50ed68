package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skein-dev/skein/runnable"
)

// TracingHandler opens one OpenTelemetry span per observed run. Spans are
// correlated between OnStart and OnEnd/OnError by the per-call id, because
// the dispatcher contract gives handlers no way to thread state through the
// observed call. Concurrent runs sharing a RunID and name (Batch fan-out
// arms, repeated nested calls) therefore each get their own span.
type TracingHandler struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracingHandler creates a handler emitting spans from tracer.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

func (h *TracingHandler) key(run runnable.RunInfo) string {
	if run.CallID != "" {
		return run.CallID
	}
	return run.RunID + "/" + run.Name
}

func (h *TracingHandler) OnStart(ctx context.Context, run runnable.RunInfo) {
	_, span := h.tracer.Start(ctx, run.Name,
		trace.WithTimestamp(run.Start),
		trace.WithAttributes(
			attribute.String("skein.run_id", run.RunID),
			attribute.StringSlice("skein.tags", run.Tags),
		),
	)
	h.mu.Lock()
	h.spans[h.key(run)] = span
	h.mu.Unlock()
}

func (h *TracingHandler) OnEnd(_ context.Context, run runnable.RunInfo, _ any) {
	if span := h.take(run); span != nil {
		span.SetStatus(codes.Ok, "")
		span.End()
	}
}

func (h *TracingHandler) OnError(_ context.Context, run runnable.RunInfo, err error) {
	if span := h.take(run); span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
	}
}

func (h *TracingHandler) take(run runnable.RunInfo) trace.Span {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := h.key(run)
	span, ok := h.spans[key]
	if !ok {
		return nil
	}
	delete(h.spans, key)
	return span
}
