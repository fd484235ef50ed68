// Package graph compiles node/edge definitions into executable state
// machines with conditional routing, per-key state reducers, and
// checkpoint-based resumption. Cycles are permitted, since agent retry and
// tool-loop patterns depend on them; runaway cycles are caught at execution
// time by the step guard.
package graph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skein-dev/skein/checkpoint"
)

// END is the terminal sentinel. Routing to END finishes the run.
const END = "__end__"

// NodeFunc transforms the current state into a partial update. Returned
// keys are merged into the running state; omitted keys persist.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouteFunc picks the next node id (or END) from the merged state.
type RouteFunc func(ctx context.Context, state State) (string, error)

// RetryPolicy re-runs a failing node function. Retries apply to node
// failures only; the executor never retries routing, checkpoint, or
// validation errors.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

type node struct {
	id    string
	fn    NodeFunc
	retry *RetryPolicy
}

// NodeOption configures a node at declaration time.
type NodeOption func(*node)

// WithRetry attaches a retry policy to the node.
func WithRetry(p RetryPolicy) NodeOption {
	return func(n *node) { n.retry = &p }
}

type conditionalEdge struct {
	route   RouteFunc
	targets map[string]struct{}
	// declared order, for error messages and deterministic validation
	targetList []string
}

// Graph accumulates nodes and edges for compilation. The builder records
// structural problems and reports them all through Compile; it never
// silently drops or corrects a definition.
type Graph struct {
	nodes       map[string]*node
	edges       map[string]string
	conditional map[string]*conditionalEdge
	entry       string
	reducers    map[string]Reducer
	errs        []*ValidationError
}

// New creates an empty graph builder.
func New() *Graph {
	return &Graph{
		nodes:       make(map[string]*node),
		edges:       make(map[string]string),
		conditional: make(map[string]*conditionalEdge),
		reducers:    make(map[string]Reducer),
	}
}

// AddNode declares a node. Ids must be unique; END is reserved.
func (g *Graph) AddNode(id string, fn NodeFunc, opts ...NodeOption) *Graph {
	if id == END {
		g.errs = append(g.errs, &ValidationError{Node: id, Reason: "node id is reserved"})
		return g
	}
	if _, exists := g.nodes[id]; exists {
		g.errs = append(g.errs, &ValidationError{Node: id, Reason: "duplicate node id"})
		return g
	}
	if fn == nil {
		g.errs = append(g.errs, &ValidationError{Node: id, Reason: "nil node function"})
		return g
	}
	n := &node{id: id, fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	g.nodes[id] = n
	return g
}

// AddEdge declares a static transition from one node to another node or END.
func (g *Graph) AddEdge(from, to string) *Graph {
	if _, dup := g.edges[from]; dup {
		g.errs = append(g.errs, &ValidationError{Node: from, Edge: edgeName(from, to), Reason: "node already has a static edge"})
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdge declares a runtime-routed transition. The full set of
// possible targets must be declared; a route function returning anything
// else raises a RoutingError at execution time.
func (g *Graph) AddConditionalEdge(from string, route RouteFunc, targets ...string) *Graph {
	if route == nil {
		g.errs = append(g.errs, &ValidationError{Node: from, Reason: "nil routing function"})
		return g
	}
	if len(targets) == 0 {
		g.errs = append(g.errs, &ValidationError{Node: from, Reason: "conditional edge declares no targets"})
		return g
	}
	if _, dup := g.conditional[from]; dup {
		g.errs = append(g.errs, &ValidationError{Node: from, Reason: "node already has a conditional edge"})
		return g
	}
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	g.conditional[from] = &conditionalEdge{route: route, targets: set, targetList: targets}
	return g
}

// SetEntry designates the entry node.
func (g *Graph) SetEntry(id string) *Graph {
	g.entry = id
	return g
}

// WithReducer registers a per-key reducer, replacing the default overwrite
// merge for that key.
func (g *Graph) WithReducer(key string, r Reducer) *Graph {
	g.reducers[key] = r
	return g
}

// CompileOption configures the compiled graph.
type CompileOption func(*CompiledGraph)

// WithName names the compiled graph in logs and callbacks.
func WithName(name string) CompileOption {
	return func(cg *CompiledGraph) { cg.name = name }
}

// WithCheckpointer attaches a checkpoint store. The executor persists a
// checkpoint after every step, before advancing.
func WithCheckpointer(saver checkpoint.Saver) CompileOption {
	return func(cg *CompiledGraph) { cg.saver = saver }
}

// WithMaxSteps sets the cycle-guard step budget per run.
func WithMaxSteps(n int) CompileOption {
	return func(cg *CompiledGraph) {
		if n > 0 {
			cg.maxSteps = n
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *zap.Logger) CompileOption {
	return func(cg *CompiledGraph) {
		if logger != nil {
			cg.logger = logger
		}
	}
}

// Compile validates the graph and produces its executable form. Validation
// checks, in order: the entry node is set and exists, every edge source is
// declared, every static target is a node or END, every conditional target
// is a node or END, and no node carries both edge kinds. Cycles pass.
func (g *Graph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	cg := &CompiledGraph{
		name:        "graph",
		nodes:       g.nodes,
		edges:       g.edges,
		conditional: g.conditional,
		entry:       g.entry,
		reducers:    g.reducers,
		maxSteps:    defaultMaxSteps,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cg)
	}
	cg.logger = cg.logger.With(zap.String("component", "graph_executor"), zap.String("graph", cg.name))
	return cg, nil
}

func (g *Graph) validate() error {
	if len(g.errs) > 0 {
		return g.errs[0]
	}
	if len(g.nodes) == 0 {
		return &ValidationError{Reason: "graph has no nodes"}
	}
	if g.entry == "" {
		return &ValidationError{Reason: "entry node not set"}
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return &ValidationError{Node: g.entry, Reason: "entry node does not exist"}
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return &ValidationError{Node: from, Edge: edgeName(from, to), Reason: "edge source is not a declared node"}
		}
		if !g.isTarget(to) {
			return &ValidationError{Node: from, Edge: edgeName(from, to), Reason: "edge target is not a declared node or END"}
		}
	}
	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return &ValidationError{Node: from, Reason: "conditional edge source is not a declared node"}
		}
		for _, t := range ce.targetList {
			if !g.isTarget(t) {
				return &ValidationError{Node: from, Edge: edgeName(from, t), Reason: "conditional target is not a declared node or END"}
			}
		}
		if _, both := g.edges[from]; both {
			return &ValidationError{Node: from, Reason: "node has both a static and a conditional edge"}
		}
	}
	return nil
}

func (g *Graph) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, ok := g.nodes[id]
	return ok
}

func edgeName(from, to string) string {
	return fmt.Sprintf("%s->%s", from, to)
}
