package runnable

import (
	"context"
	"fmt"
	"strings"
)

// Sequence chains units into a pipeline: each step consumes the previous
// step's output. A Sequence is itself a Runnable, so pipelines nest and
// serve as graph node bodies.
type Sequence struct {
	name  string
	steps []Runnable
}

// NewSequence builds a pipeline from the given steps, flattening nested
// sequences so Pipe chains stay one level deep.
func NewSequence(steps ...Runnable) *Sequence {
	flat := make([]Runnable, 0, len(steps))
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		if seq, ok := s.(*Sequence); ok {
			flat = append(flat, seq.steps...)
		} else {
			flat = append(flat, s)
		}
	}
	for _, s := range flat {
		names = append(names, s.Name())
	}
	return &Sequence{
		name:  strings.Join(names, "|"),
		steps: flat,
	}
}

func (s *Sequence) Name() string { return s.name }

// Steps returns the pipeline's steps in execution order.
func (s *Sequence) Steps() []Runnable { return s.steps }

func (s *Sequence) Invoke(ctx context.Context, input any, opts ...Option) (any, error) {
	cfg := resolveConfig(ctx, applyOptions(opts))
	return Run(ctx, s.name, cfg, func(ctx context.Context) (any, error) {
		return s.invokeSteps(ctx, s.steps, input)
	})
}

func (s *Sequence) invokeSteps(ctx context.Context, steps []Runnable, input any) (any, error) {
	current := input
	for i, step := range steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out, err := step.Invoke(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("sequence step %d (%s): %w", i+1, step.Name(), err)
		}
		current = out
	}
	return current, nil
}

func (s *Sequence) Batch(ctx context.Context, inputs []any, opts ...Option) ([]any, error) {
	return BatchInvoke(ctx, s, inputs, opts)
}

// Stream invokes every step but the last, then streams the final step.
func (s *Sequence) Stream(ctx context.Context, input any, opts ...Option) (*StreamReader, error) {
	if len(s.steps) == 0 {
		return StreamOnce(ctx, Passthrough(), input, opts)
	}
	cfg := resolveConfig(ctx, applyOptions(opts))
	ctx = WithConfig(ctx, cfg)
	current, err := s.invokeSteps(ctx, s.steps[:len(s.steps)-1], input)
	if err != nil {
		return nil, err
	}
	return s.steps[len(s.steps)-1].Stream(ctx, current)
}

func (s *Sequence) Pipe(next Runnable) Runnable {
	return NewSequence(s, next)
}
