package runnable

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runnable is the atomic execution contract. Implementations are constructed
// once and invoked many times; any per-call state lives in the arguments,
// never in hidden mutable fields.
type Runnable interface {
	// Name identifies the unit in logs, callbacks, and errors.
	Name() string
	// Invoke performs a single logical call.
	Invoke(ctx context.Context, input any, opts ...Option) (any, error)
	// Batch invokes the unit concurrently for every input, returning outputs
	// positionally aligned with inputs. The join is all-or-nothing: any
	// failure fails the whole batch and no partial results are returned.
	Batch(ctx context.Context, inputs []any, opts ...Option) ([]any, error)
	// Stream performs one call that yields incremental partial outputs.
	// The returned reader is finite, pull-based, and not restartable.
	Stream(ctx context.Context, input any, opts ...Option) (*StreamReader, error)
	// Pipe chains this unit into the next, returning a Sequence that is
	// itself a Runnable.
	Pipe(next Runnable) Runnable
}

// Option adjusts a single call.
type Option func(*callOptions)

type callOptions struct {
	config *Config
	params map[string]any
}

// WithCallConfig supplies the Config for this call, overriding any Config
// inherited from the context.
func WithCallConfig(cfg *Config) Option {
	return func(o *callOptions) { o.config = cfg }
}

// WithParam supplies an explicit call-time parameter. Explicit parameters
// take precedence over Config.Configurable entries and constructor defaults.
func WithParam(key string, value any) Option {
	return func(o *callOptions) {
		if o.params == nil {
			o.params = make(map[string]any)
		}
		o.params[key] = value
	}
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// resolveConfig picks the call Config: an explicit option wins, then the
// context, then an empty default. A RunID is assigned when missing.
func resolveConfig(ctx context.Context, o callOptions) *Config {
	cfg := o.config
	if cfg == nil {
		if inherited, ok := FromContext(ctx); ok {
			cfg = inherited
		} else {
			cfg = NewConfig()
		}
	}
	if cfg.RunID == "" {
		cfg = cfg.Child(nil)
		cfg.RunID = uuid.NewString()
	}
	return cfg
}

// ResolveConfig returns the effective Config for a call: an explicit
// WithCallConfig option wins, then the context, then an empty default. It is
// exported for external Runnable implementations.
func ResolveConfig(ctx context.Context, opts ...Option) *Config {
	return resolveConfig(ctx, applyOptions(opts))
}

// Run executes fn under callback dispatch: OnStart before, OnEnd on success,
// OnError on failure. The Config rides the context so nested units inherit it.
func Run(ctx context.Context, name string, cfg *Config, fn func(context.Context) (any, error)) (any, error) {
	d := newDispatcher(cfg)
	info := RunInfo{
		RunID:    cfg.RunID,
		CallID:   uuid.NewString(),
		Name:     name,
		Tags:     cfg.Tags,
		Metadata: cfg.Metadata,
		Start:    time.Now(),
	}
	ctx = WithConfig(ctx, cfg)

	d.start(ctx, info)
	output, err := fn(ctx)
	if err != nil {
		d.fail(ctx, info, err)
		return nil, err
	}
	d.end(ctx, info, output)
	return output, nil
}

// BatchInvoke is the shared Batch implementation: concurrent fan-out with an
// all-or-nothing join. The first failure cancels outstanding invocations.
func BatchInvoke(ctx context.Context, r Runnable, inputs []any, opts []Option) ([]any, error) {
	if len(inputs) == 0 {
		return []any{}, nil
	}
	outputs := make([]any, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		g.Go(func() error {
			out, err := r.Invoke(gctx, input, opts...)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// StreamOnce adapts Invoke into a single-element stream for units with no
// incremental output of their own.
func StreamOnce(ctx context.Context, r Runnable, input any, opts []Option) (*StreamReader, error) {
	out, err := r.Invoke(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	reader, writer := Pipe()
	go func() {
		defer writer.Close(nil)
		_ = writer.Send(ctx, out)
	}()
	return reader, nil
}

// Func adapts a plain function to the Runnable contract.
type Func struct {
	name string
	fn   func(ctx context.Context, input any) (any, error)
}

// NewFunc creates a function-backed unit.
func NewFunc(name string, fn func(ctx context.Context, input any) (any, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Invoke(ctx context.Context, input any, opts ...Option) (any, error) {
	cfg := resolveConfig(ctx, applyOptions(opts))
	return Run(ctx, f.name, cfg, func(ctx context.Context) (any, error) {
		return f.fn(ctx, input)
	})
}

func (f *Func) Batch(ctx context.Context, inputs []any, opts ...Option) ([]any, error) {
	return BatchInvoke(ctx, f, inputs, opts)
}

func (f *Func) Stream(ctx context.Context, input any, opts ...Option) (*StreamReader, error) {
	return StreamOnce(ctx, f, input, opts)
}

func (f *Func) Pipe(next Runnable) Runnable {
	return NewSequence(f, next)
}

// Passthrough returns a unit that echoes its input unchanged.
func Passthrough() *Func {
	return NewFunc("passthrough", func(_ context.Context, input any) (any, error) {
		return input, nil
	})
}
