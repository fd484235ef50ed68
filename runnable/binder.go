package runnable

import "context"

// Binder wraps a parameterized function with constructor-time defaults.
// At call time each parameter resolves with this precedence: explicit
// WithParam option, then the Config's Configurable entry, then the default
// bound at construction.
type Binder struct {
	name     string
	defaults map[string]any
	fn       func(ctx context.Context, input any, params map[string]any) (any, error)
}

// NewBinder creates a unit with bound default parameters.
func NewBinder(name string, defaults map[string]any, fn func(ctx context.Context, input any, params map[string]any) (any, error)) *Binder {
	bound := make(map[string]any, len(defaults))
	for k, v := range defaults {
		bound[k] = v
	}
	return &Binder{name: name, defaults: bound, fn: fn}
}

// Bind derives a new Binder with additional defaults, leaving the receiver
// untouched.
func (b *Binder) Bind(params map[string]any) *Binder {
	merged := make(map[string]any, len(b.defaults)+len(params))
	for k, v := range b.defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return &Binder{name: b.name, defaults: merged, fn: b.fn}
}

func (b *Binder) Name() string { return b.name }

func (b *Binder) Invoke(ctx context.Context, input any, opts ...Option) (any, error) {
	o := applyOptions(opts)
	cfg := resolveConfig(ctx, o)
	params := b.resolveParams(cfg, o.params)
	return Run(ctx, b.name, cfg, func(ctx context.Context) (any, error) {
		return b.fn(ctx, input, params)
	})
}

// resolveParams applies the parameter precedence for this call.
func (b *Binder) resolveParams(cfg *Config, explicit map[string]any) map[string]any {
	params := make(map[string]any, len(b.defaults))
	for k, v := range b.defaults {
		params[k] = v
	}
	for k := range params {
		if v, ok := cfg.Configurable[k]; ok {
			params[k] = v
		}
	}
	for k, v := range explicit {
		params[k] = v
	}
	return params
}

func (b *Binder) Batch(ctx context.Context, inputs []any, opts ...Option) ([]any, error) {
	return BatchInvoke(ctx, b, inputs, opts)
}

func (b *Binder) Stream(ctx context.Context, input any, opts ...Option) (*StreamReader, error) {
	return StreamOnce(ctx, b, input, opts)
}

func (b *Binder) Pipe(next Runnable) Runnable {
	return NewSequence(b, next)
}
