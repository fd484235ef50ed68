package observe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skein-dev/skein/runnable"
)

// LoggingHandler logs unit call lifecycle events.
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a handler writing to logger. Nil is treated as
// a no-op logger.
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{logger: logger.With(zap.String("component", "callbacks"))}
}

func (h *LoggingHandler) OnStart(_ context.Context, run runnable.RunInfo) {
	h.logger.Debug("run started",
		zap.String("run_id", run.RunID),
		zap.String("name", run.Name),
		zap.Strings("tags", run.Tags),
	)
}

func (h *LoggingHandler) OnEnd(_ context.Context, run runnable.RunInfo, _ any) {
	h.logger.Debug("run completed",
		zap.String("run_id", run.RunID),
		zap.String("name", run.Name),
		zap.Duration("duration", time.Since(run.Start)),
	)
}

func (h *LoggingHandler) OnError(_ context.Context, run runnable.RunInfo, err error) {
	h.logger.Warn("run failed",
		zap.String("run_id", run.RunID),
		zap.String("name", run.Name),
		zap.Duration("duration", time.Since(run.Start)),
		zap.Error(err),
	)
}
