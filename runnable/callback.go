package runnable

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunInfo describes one unit call to callback handlers.
type RunInfo struct {
	// RunID identifies the call tree; nested and fanned-out calls share it.
	RunID string
	// CallID is unique to this dispatched call. Handlers correlating start
	// and end events key on it, since concurrent calls in one tree share
	// both RunID and Name.
	CallID   string
	Name     string
	Tags     []string
	Metadata map[string]any
	Start    time.Time
}

// Handler observes the lifecycle of a unit call. Implementations must not
// assume they can affect the call: a handler that panics is recovered and
// logged, and its failure never alters the observed call's outcome.
type Handler interface {
	OnStart(ctx context.Context, run RunInfo)
	OnEnd(ctx context.Context, run RunInfo, output any)
	OnError(ctx context.Context, run RunInfo, err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	StartFn func(ctx context.Context, run RunInfo)
	EndFn   func(ctx context.Context, run RunInfo, output any)
	ErrorFn func(ctx context.Context, run RunInfo, err error)
}

func (h HandlerFuncs) OnStart(ctx context.Context, run RunInfo) {
	if h.StartFn != nil {
		h.StartFn(ctx, run)
	}
}

func (h HandlerFuncs) OnEnd(ctx context.Context, run RunInfo, output any) {
	if h.EndFn != nil {
		h.EndFn(ctx, run, output)
	}
}

func (h HandlerFuncs) OnError(ctx context.Context, run RunInfo, err error) {
	if h.ErrorFn != nil {
		h.ErrorFn(ctx, run, err)
	}
}

// NotifyStart dispatches OnStart to the Config's handlers. Exported for
// external Runnable implementations that report finer-grained lifecycle
// points than one call, such as graph executor steps.
func NotifyStart(ctx context.Context, cfg *Config, run RunInfo) {
	newDispatcher(cfg).start(ctx, run)
}

// NotifyEnd dispatches OnEnd to the Config's handlers.
func NotifyEnd(ctx context.Context, cfg *Config, run RunInfo, output any) {
	newDispatcher(cfg).end(ctx, run, output)
}

// NotifyError dispatches OnError to the Config's handlers.
func NotifyError(ctx context.Context, cfg *Config, run RunInfo, err error) {
	newDispatcher(cfg).fail(ctx, run, err)
}

// dispatcher fans lifecycle notifications out to the Config's handlers in
// registration order, isolating the call from handler panics.
type dispatcher struct {
	handlers []Handler
	logger   *zap.Logger
}

func newDispatcher(cfg *Config) dispatcher {
	return dispatcher{handlers: cfg.Callbacks, logger: cfg.logger()}
}

func (d dispatcher) start(ctx context.Context, run RunInfo) {
	for _, h := range d.handlers {
		d.safely(run, "on_start", func() { h.OnStart(ctx, run) })
	}
}

func (d dispatcher) end(ctx context.Context, run RunInfo, output any) {
	for _, h := range d.handlers {
		d.safely(run, "on_end", func() { h.OnEnd(ctx, run, output) })
	}
}

func (d dispatcher) fail(ctx context.Context, run RunInfo, err error) {
	for _, h := range d.handlers {
		d.safely(run, "on_error", func() { h.OnError(ctx, run, err) })
	}
}

// safely runs one hook, swallowing panics so observability failures cannot
// corrupt the observed call.
func (d dispatcher) safely(run RunInfo, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("callback handler panicked",
				zap.String("hook", hook),
				zap.String("run_id", run.RunID),
				zap.String("name", run.Name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
