package observe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skein-dev/skein/runnable"
)

// MetricsHandler records unit call counts and durations as Prometheus
// metrics, labeled by unit name. Graph executors surface per-node series
// through the same handler because each step is dispatched as a run named
// "<graph>:<node>".
type MetricsHandler struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewMetricsHandler registers the handler's collectors with reg. A nil
// registerer falls back to the default registry.
func NewMetricsHandler(namespace string, reg prometheus.Registerer) *MetricsHandler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &MetricsHandler{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Unit calls observed, by name and outcome.",
			},
			[]string{"name", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Unit call duration in seconds, by name.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"name"},
		),
	}
	reg.MustRegister(h.runsTotal, h.runDuration)
	return h
}

func (h *MetricsHandler) OnStart(_ context.Context, _ runnable.RunInfo) {}

func (h *MetricsHandler) OnEnd(_ context.Context, run runnable.RunInfo, _ any) {
	h.runsTotal.WithLabelValues(run.Name, "ok").Inc()
	h.runDuration.WithLabelValues(run.Name).Observe(time.Since(run.Start).Seconds())
}

func (h *MetricsHandler) OnError(_ context.Context, run runnable.RunInfo, _ error) {
	h.runsTotal.WithLabelValues(run.Name, "error").Inc()
	h.runDuration.WithLabelValues(run.Name).Observe(time.Since(run.Start).Seconds())
}
