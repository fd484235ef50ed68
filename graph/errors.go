package graph

import "fmt"

// ValidationError reports a malformed graph at compile time. It always
// surfaces before any node executes; a graph never partially compiles.
type ValidationError struct {
	Node   string
	Edge   string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Edge != "":
		return fmt.Sprintf("graph validation: edge %s: %s", e.Edge, e.Reason)
	case e.Node != "":
		return fmt.Sprintf("graph validation: node %s: %s", e.Node, e.Reason)
	default:
		return fmt.Sprintf("graph validation: %s", e.Reason)
	}
}

// ExecutionError wraps a node function failure with its node id and step
// number. It aborts only the current thread's run.
type ExecutionError struct {
	Node string
	Step int
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %s failed at step %d: %v", e.Node, e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RoutingError reports a routing function returning a target that was not
// declared for its conditional edge. No checkpoint is written for the
// failed step.
type RoutingError struct {
	Node   string
	Target string
	Step   int
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("node %s routed to undeclared target %q at step %d", e.Node, e.Target, e.Step)
}

// StepLimitError reports the cycle guard firing: the run exceeded its
// maximum step budget without reaching END. The last good checkpoint
// remains valid for inspection and resume.
type StepLimitError struct {
	ThreadID string
	Limit    int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("thread %s exceeded step limit %d", e.ThreadID, e.Limit)
}
