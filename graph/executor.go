package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skein-dev/skein/checkpoint"
	"github.com/skein-dev/skein/runnable"
)

// defaultMaxSteps bounds a run when neither the compile options nor the
// call Config set a budget.
const defaultMaxSteps = 25

// StepEvent is one element of a graph stream: the state after one executed
// step.
type StepEvent struct {
	Step  int
	Node  string
	State State
}

// CompiledGraph is the validated, immutable, executable form of a Graph.
// It implements runnable.Runnable, so a compiled graph composes like any
// other unit: as a pipeline stage or as another graph's node body.
//
// The step loop for a single thread id is strictly sequential. Distinct
// thread ids are independent; Batch therefore requires per-input thread ids
// (or no checkpointer) to avoid append conflicts on a shared chain.
type CompiledGraph struct {
	name        string
	nodes       map[string]*node
	edges       map[string]string
	conditional map[string]*conditionalEdge
	entry       string
	reducers    map[string]Reducer
	saver       checkpoint.Saver
	maxSteps    int
	logger      *zap.Logger
}

func (g *CompiledGraph) Name() string { return g.name }

// Entry returns the entry node id.
func (g *CompiledGraph) Entry() string { return g.entry }

func (g *CompiledGraph) Invoke(ctx context.Context, input any, opts ...runnable.Option) (any, error) {
	cfg := runnable.ResolveConfig(ctx, opts...)
	return runnable.Run(ctx, g.name, cfg, func(ctx context.Context) (any, error) {
		state, err := toState(input)
		if err != nil {
			return nil, err
		}
		return g.execute(ctx, cfg, state, g.entry, 0, nil, nil)
	})
}

func (g *CompiledGraph) Batch(ctx context.Context, inputs []any, opts ...runnable.Option) ([]any, error) {
	return runnable.BatchInvoke(ctx, g, inputs, opts)
}

// Stream executes the graph in a producer goroutine, yielding one StepEvent
// per executed step. The producer suspends between steps until the consumer
// receives; closing the reader aborts the run.
func (g *CompiledGraph) Stream(ctx context.Context, input any, opts ...runnable.Option) (*runnable.StreamReader, error) {
	cfg := runnable.ResolveConfig(ctx, opts...)
	state, err := toState(input)
	if err != nil {
		return nil, err
	}
	reader, writer := runnable.Pipe()
	go func() {
		_, err := runnable.Run(ctx, g.name, cfg, func(ctx context.Context) (any, error) {
			return g.execute(ctx, cfg, state, g.entry, 0, nil, func(ev StepEvent) error {
				return writer.Send(ctx, ev)
			})
		})
		writer.Close(err)
	}()
	return reader, nil
}

func (g *CompiledGraph) Pipe(next runnable.Runnable) runnable.Runnable {
	return runnable.NewSequence(g, next)
}

// Resume loads the thread's latest checkpoint and continues the step loop
// from its recorded next node at step+1. For a deterministic graph this
// reproduces the continuation an uninterrupted run would have produced.
// A thread whose latest checkpoint already routed to END returns its final
// state without executing anything.
func (g *CompiledGraph) Resume(ctx context.Context, threadID string, opts ...runnable.Option) (any, error) {
	if g.saver == nil {
		return nil, fmt.Errorf("graph %s: resume requires a checkpointer", g.name)
	}
	cp, err := g.saver.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp.NextNode == END {
		return State(cp.State), nil
	}

	cfg := runnable.ResolveConfig(ctx, opts...).Child(&runnable.Config{ThreadID: threadID})
	parent := cp.Step
	return runnable.Run(ctx, g.name, cfg, func(ctx context.Context) (any, error) {
		return g.execute(ctx, cfg, State(cp.State), cp.NextNode, cp.Step+1, &parent, nil)
	})
}

// execute is the step-indexed state machine loop shared by Invoke, Stream,
// and Resume. Per step: notify start, run the node, merge its update, pick
// the next node, persist the checkpoint, then either finish at END or
// advance.
func (g *CompiledGraph) execute(ctx context.Context, cfg *runnable.Config, state State, current string, startStep int, parent *int, onStep func(StepEvent) error) (State, error) {
	maxSteps := g.maxSteps
	if cfg.MaxSteps > 0 {
		maxSteps = cfg.MaxSteps
	}
	threadID := cfg.ThreadID
	if threadID == "" {
		threadID = cfg.RunID
	}

	step := startStep
	executed := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if executed >= maxSteps {
			return nil, &StepLimitError{ThreadID: threadID, Limit: maxSteps}
		}

		n := g.nodes[current]
		if n == nil {
			return nil, &ExecutionError{Node: current, Step: step, Err: fmt.Errorf("node is not defined")}
		}
		info := runnable.RunInfo{
			RunID:    cfg.RunID,
			CallID:   uuid.NewString(),
			Name:     g.name + ":" + current,
			Tags:     cfg.Tags,
			Metadata: cfg.Metadata,
			Start:    time.Now(),
		}
		runnable.NotifyStart(ctx, cfg, info)

		delta, err := g.runNode(ctx, n, state)
		if err != nil {
			ee := &ExecutionError{Node: current, Step: step, Err: err}
			runnable.NotifyError(ctx, cfg, info, ee)
			return nil, ee
		}
		state = mergeState(state, delta, g.reducers)

		next, err := g.nextNode(ctx, current, state, step)
		if err != nil {
			runnable.NotifyError(ctx, cfg, info, err)
			return nil, err
		}
		runnable.NotifyEnd(ctx, cfg, info, delta)

		if g.saver != nil {
			cp := &checkpoint.Checkpoint{
				ThreadID:   threadID,
				Step:       step,
				State:      state.Clone(),
				NextNode:   next,
				Timestamp:  time.Now(),
				ParentStep: parent,
			}
			if err := g.saver.Put(ctx, cp); err != nil {
				return nil, err
			}
		}

		g.logger.Debug("step complete",
			zap.String("thread_id", threadID),
			zap.Int("step", step),
			zap.String("node", current),
			zap.String("next", next),
		)

		if onStep != nil {
			if err := onStep(StepEvent{Step: step, Node: current, State: state.Clone()}); err != nil {
				return nil, err
			}
		}

		if next == END {
			return state, nil
		}
		p := step
		parent = &p
		step++
		executed++
		current = next
	}
}

// runNode applies the node's retry policy, if any. Each attempt sees a
// clone of the running state so a failing attempt cannot leak partial
// mutations into the next one.
func (g *CompiledGraph) runNode(ctx context.Context, n *node, state State) (State, error) {
	attempts := 1
	var backoff time.Duration
	if n.retry != nil {
		if n.retry.MaxAttempts > 1 {
			attempts = n.retry.MaxAttempts
		}
		backoff = n.retry.Backoff
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		delta, err := n.fn(ctx, state.Clone())
		if err == nil {
			return delta, nil
		}
		lastErr = err
		g.logger.Debug("node attempt failed",
			zap.String("node", n.id),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// nextNode resolves the transition out of the current node. A node with no
// outgoing edge terminates the run. A routing function's error is a node
// failure for the step; an undeclared target is a RoutingError, raised
// before any checkpoint is written for the step.
func (g *CompiledGraph) nextNode(ctx context.Context, current string, state State, step int) (string, error) {
	if to, ok := g.edges[current]; ok {
		return to, nil
	}
	ce, ok := g.conditional[current]
	if !ok {
		return END, nil
	}
	target, err := ce.route(ctx, state.Clone())
	if err != nil {
		return "", &ExecutionError{Node: current, Step: step, Err: fmt.Errorf("routing: %w", err)}
	}
	if _, declared := ce.targets[target]; !declared {
		return "", &RoutingError{Node: current, Target: target, Step: step}
	}
	return target, nil
}

func toState(input any) (State, error) {
	switch v := input.(type) {
	case nil:
		return State{}, nil
	case State:
		return v.Clone(), nil
	case map[string]any:
		return State(v).Clone(), nil
	default:
		return nil, fmt.Errorf("graph input must be a state map, got %T", input)
	}
}
