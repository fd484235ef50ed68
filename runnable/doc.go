// Package runnable defines the composable execution unit contract shared by
// every computation step in skein: pipelines, graph nodes, and the leaf
// components (LLM wrappers, tools) they orchestrate.
//
// A Runnable supports three call shapes: Invoke for a single call, Batch
// for concurrent fan-out over a slice of inputs, and Stream for pull-based
// incremental output. Units compose with Pipe, producing a Sequence that is
// itself a Runnable.
//
// Every call carries a Config: an immutable bag of callback handlers, tags,
// metadata, and runtime overrides. Configs derive with Child (nesting) or
// Merge (peers) and never mutate their parents.
package runnable
