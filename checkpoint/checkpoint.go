// Package checkpoint persists per-thread state snapshots for graph
// execution, enabling replay and crash recovery. Checkpoints for one thread
// form a strictly increasing, append-only chain; history is never
// overwritten.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Checkpoint is an immutable snapshot of a thread's state after one
// executor step. ParentStep links snapshots into a version chain; it is nil
// for the first step of a thread.
type Checkpoint struct {
	ThreadID   string         `json:"thread_id"`
	Step       int            `json:"step"`
	State      map[string]any `json:"state"`
	NextNode   string         `json:"next_node"`
	Timestamp  time.Time      `json:"timestamp"`
	ParentStep *int           `json:"parent_step"`
}

// Saver is the checkpoint store contract shared by all backends.
type Saver interface {
	// Put appends a checkpoint to the thread's chain. Writing a step less
	// than or equal to the thread's latest stored step is rejected with a
	// conflict error.
	Put(ctx context.Context, cp *Checkpoint) error
	// Get returns the checkpoint at the given step.
	Get(ctx context.Context, threadID string, step int) (*Checkpoint, error)
	// Latest returns the thread's most recent checkpoint.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)
	// List returns the thread's checkpoints in ascending step order.
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)
}

// ErrorCode classifies checkpoint store failures.
type ErrorCode string

const (
	// CodeNotFound means the thread or step has no stored checkpoint.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeConflict means an append would rewind or overwrite history.
	CodeConflict ErrorCode = "CONFLICT"
	// CodeCorrupt means a stored checkpoint could not be decoded.
	CodeCorrupt ErrorCode = "CORRUPT"
	// CodeIO means the backend failed to read or write.
	CodeIO ErrorCode = "IO"
)

// Error is a structured checkpoint store failure. Persistence problems are
// always surfaced to the caller, never silently skipped.
type Error struct {
	Code     ErrorCode
	Op       string
	ThreadID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkpoint %s [%s] thread=%s: %v", e.Op, e.Code, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("checkpoint %s [%s] thread=%s", e.Op, e.Code, e.ThreadID)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a not-found checkpoint error.
func IsNotFound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == CodeNotFound
}

// IsConflict reports whether err is an append-only conflict.
func IsConflict(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == CodeConflict
}
