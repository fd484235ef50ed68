package checkpoint

import (
	"context"
	"encoding/json"
	"sync"
)

// MemorySaver keeps checkpoint chains in process memory. It is intended for
// tests and ephemeral runs; everything is lost on restart.
//
// Checkpoints are stored as their JSON encoding, which both prevents the
// caller from aliasing stored state and enforces the serializability
// contract uniformly with the durable backends.
type MemorySaver struct {
	mu      sync.RWMutex
	threads map[string][][]byte
}

// NewMemorySaver creates an empty in-memory store.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{threads: make(map[string][][]byte)}
}

func (s *MemorySaver) Put(_ context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.threads[cp.ThreadID]
	if n := len(chain); n > 0 {
		latest, err := decode(chain[n-1])
		if err != nil {
			return &Error{Code: CodeCorrupt, Op: "put", ThreadID: cp.ThreadID, Err: err}
		}
		if cp.Step <= latest.Step {
			return &Error{Code: CodeConflict, Op: "put", ThreadID: cp.ThreadID}
		}
	}
	s.threads[cp.ThreadID] = append(chain, data)
	return nil
}

func (s *MemorySaver) Get(_ context.Context, threadID string, step int) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, data := range s.threads[threadID] {
		cp, err := decode(data)
		if err != nil {
			return nil, &Error{Code: CodeCorrupt, Op: "get", ThreadID: threadID, Err: err}
		}
		if cp.Step == step {
			return cp, nil
		}
	}
	return nil, &Error{Code: CodeNotFound, Op: "get", ThreadID: threadID}
}

func (s *MemorySaver) Latest(_ context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.threads[threadID]
	if len(chain) == 0 {
		return nil, &Error{Code: CodeNotFound, Op: "latest", ThreadID: threadID}
	}
	cp, err := decode(chain[len(chain)-1])
	if err != nil {
		return nil, &Error{Code: CodeCorrupt, Op: "latest", ThreadID: threadID, Err: err}
	}
	return cp, nil
}

func (s *MemorySaver) List(_ context.Context, threadID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.threads[threadID]
	out := make([]*Checkpoint, 0, len(chain))
	for _, data := range chain {
		cp, err := decode(data)
		if err != nil {
			return nil, &Error{Code: CodeCorrupt, Op: "list", ThreadID: threadID, Err: err}
		}
		out = append(out, cp)
	}
	return out, nil
}

func decode(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
