package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skein-dev/skein/runnable"
)

func runInfo(name string) runnable.RunInfo {
	return runnable.RunInfo{
		RunID: "run-1",
		Name:  name,
		Tags:  []string{"test"},
		Start: time.Now(),
	}
}

func TestLoggingHandler_EmitsLifecycleLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := NewLoggingHandler(zap.New(core))
	ctx := context.Background()

	info := runInfo("unit")
	h.OnStart(ctx, info)
	h.OnEnd(ctx, info, nil)
	h.OnError(ctx, info, errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "run started", entries[0].Message)
	assert.Equal(t, "run completed", entries[1].Message)
	assert.Equal(t, "run failed", entries[2].Message)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
}

func TestLoggingHandler_NilLogger(t *testing.T) {
	h := NewLoggingHandler(nil)
	assert.NotPanics(t, func() {
		h.OnStart(context.Background(), runInfo("unit"))
	})
}

func TestMetricsHandler_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewMetricsHandler("skein", reg)
	ctx := context.Background()

	info := runInfo("unit")
	h.OnEnd(ctx, info, nil)
	h.OnEnd(ctx, info, nil)
	h.OnError(ctx, info, errors.New("boom"))

	ok := testutil.ToFloat64(h.runsTotal.WithLabelValues("unit", "ok"))
	failed := testutil.ToFloat64(h.runsTotal.WithLabelValues("unit", "error"))
	assert.Equal(t, float64(2), ok)
	assert.Equal(t, float64(1), failed)
}

func TestMetricsHandler_ObservedThroughDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewMetricsHandler("skein", reg)

	unit := runnable.NewFunc("double", func(_ context.Context, input any) (any, error) {
		return input.(int) * 2, nil
	})
	cfg := &runnable.Config{Callbacks: []runnable.Handler{h}}

	_, err := unit.Invoke(context.Background(), 1, runnable.WithCallConfig(cfg))
	require.NoError(t, err)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(h.runsTotal.WithLabelValues("double", "ok")))
}

func TestTracingHandler_SpanPerRun(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	h := NewTracingHandler(tp.Tracer("test"))
	ctx := context.Background()

	info := runInfo("unit")
	h.OnStart(ctx, info)
	h.OnEnd(ctx, info, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unit", spans[0].Name)
	assert.Equal(t, otelcodes.Ok, spans[0].Status.Code)
}

func TestTracingHandler_ErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	h := NewTracingHandler(tp.Tracer("test"))
	ctx := context.Background()

	info := runInfo("unit")
	h.OnStart(ctx, info)
	h.OnError(ctx, info, errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, otelcodes.Error, spans[0].Status.Code)
	require.Len(t, spans[0].Events, 1, "error recorded on span")
}

func TestTracingHandler_OverlappingSameNameRuns(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	h := NewTracingHandler(tp.Tracer("test"))
	ctx := context.Background()

	// Batch fan-out arms share the RunID and name; only the call id
	// distinguishes them.
	first := runInfo("unit")
	first.CallID = "call-1"
	second := runInfo("unit")
	second.CallID = "call-2"

	h.OnStart(ctx, first)
	h.OnStart(ctx, second)
	h.OnEnd(ctx, first, nil)
	h.OnEnd(ctx, second, nil)

	assert.Len(t, exporter.GetSpans(), 2, "every started span is ended")
}

func TestTracingHandler_EndWithoutStart(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	h := NewTracingHandler(tp.Tracer("test"))

	assert.NotPanics(t, func() {
		h.OnEnd(context.Background(), runInfo("unit"), nil)
	})
	assert.Empty(t, exporter.GetSpans())
}
