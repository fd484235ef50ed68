// Package skein provides a top-level convenience entry point for composing
// execution pipelines and graphs with minimal boilerplate.
//
// Usage:
//
//	import "github.com/skein-dev/skein"
//
//	fetch := skein.Func("fetch", fetchFn)
//	parse := skein.Func("parse", parseFn)
//	out, err := fetch.Pipe(parse).Invoke(ctx, input)
//
// This is a thin layer over [runnable] and [graph]; both produce identical
// results. Use this package when you prefer the shorter import path.
package skein

import (
	"context"

	"github.com/skein-dev/skein/graph"
	"github.com/skein-dev/skein/runnable"
)

// END is the terminal routing target for graphs.
const END = graph.END

// State is the running state of a graph execution.
type State = graph.State

// Runnable is the atomic execution contract shared by functions, pipelines,
// and compiled graphs.
type Runnable = runnable.Runnable

// Config is the per-call execution context.
type Config = runnable.Config

// Func adapts a plain function to the Runnable contract.
func Func(name string, fn func(ctx context.Context, input any) (any, error)) *runnable.Func {
	return runnable.NewFunc(name, fn)
}

// Pipeline chains units left to right into a single Runnable.
func Pipeline(steps ...Runnable) *runnable.Sequence {
	return runnable.NewSequence(steps...)
}

// NewGraph creates an empty graph builder.
func NewGraph() *graph.Graph {
	return graph.New()
}
