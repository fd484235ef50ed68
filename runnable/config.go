package runnable

import (
	"context"

	"go.uber.org/zap"
)

// Config is the per-call execution context: callback handlers, tags,
// metadata, and free-form runtime overrides. A Config is immutable once
// constructed; Child and Merge return new instances and never touch the
// receiver. Each call owns its own Config.
type Config struct {
	// Callbacks are invoked in registration order at every lifecycle point.
	// Derivation appends, never replaces.
	Callbacks []Handler
	// Tags are string labels that accumulate across derivation.
	Tags []string
	// Metadata is shallow-merged on derivation, child keys winning.
	Metadata map[string]any
	// Configurable holds runtime overrides consulted by concrete units.
	// Resolution order: explicit call-time parameter, Configurable entry,
	// the unit's constructor-time default.
	Configurable map[string]any
	// ThreadID names the logical execution lineage for checkpointing.
	ThreadID string
	// RunID identifies this call tree. Assigned on first use when empty.
	RunID string
	// MaxSteps bounds graph execution. Zero means the executor default.
	MaxSteps int
	// Logger receives dispatcher diagnostics (suppressed handler failures).
	// Nil is treated as a no-op logger.
	Logger *zap.Logger
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{}
}

// Child derives a new Config from the receiver: callbacks are the parent's
// followed by the overrides', tags accumulate, metadata and configurable
// entries shallow-merge with override keys winning. The parent is never
// mutated; nil overrides yields a plain copy.
func (c *Config) Child(overrides *Config) *Config {
	child := c.copy()
	if overrides == nil {
		return child
	}
	child.Callbacks = append(child.Callbacks, overrides.Callbacks...)
	child.Tags = unionTags(child.Tags, overrides.Tags)
	child.Metadata = mergeMaps(child.Metadata, overrides.Metadata)
	child.Configurable = mergeMaps(child.Configurable, overrides.Configurable)
	if overrides.ThreadID != "" {
		child.ThreadID = overrides.ThreadID
	}
	if overrides.MaxSteps > 0 {
		child.MaxSteps = overrides.MaxSteps
	}
	if overrides.Logger != nil {
		child.Logger = overrides.Logger
	}
	return child
}

// Merge combines two independently built Configs as peers. The mechanics
// match Child, but no nesting relationship is implied: other's metadata and
// configurable keys win, and neither side's tags are treated as the base.
func (c *Config) Merge(other *Config) *Config {
	return c.Child(other)
}

func (c *Config) copy() *Config {
	cp := &Config{
		ThreadID: c.ThreadID,
		RunID:    c.RunID,
		MaxSteps: c.MaxSteps,
		Logger:   c.Logger,
	}
	cp.Callbacks = append([]Handler(nil), c.Callbacks...)
	cp.Tags = append([]string(nil), c.Tags...)
	cp.Metadata = mergeMaps(nil, c.Metadata)
	cp.Configurable = mergeMaps(nil, c.Configurable)
	return cp
}

// logger returns the configured logger or a no-op.
func (c *Config) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func unionTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	out := append([]string(nil), base...)
	for _, t := range base {
		seen[t] = struct{}{}
	}
	for _, t := range extra {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func mergeMaps(base, extra map[string]any) map[string]any {
	if base == nil && extra == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// configKey is used for storing the call Config in context.Context.
type configKey struct{}

// WithConfig stores the Config in the context so nested unit calls inherit
// the caller's callbacks, tags, and overrides.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	if cfg == nil {
		return ctx
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext extracts the call Config from context.
func FromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	return cfg, ok && cfg != nil
}
