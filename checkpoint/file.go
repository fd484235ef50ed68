package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileSaver persists one thread's checkpoint history as JSON files under
// <dir>/<threadID>/<step>.json. Every write goes to a temporary file in the
// same directory and is renamed into place, so readers never observe a torn
// checkpoint.
//
// A per-thread mutex serializes writers within one process. A durable store
// shared by multiple executor processes additionally needs a single-writer
// lease per thread; FileSaver does not provide one.
type FileSaver struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileSaver creates the base directory if needed.
func NewFileSaver(dir string, logger *zap.Logger) (*FileSaver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Code: CodeIO, Op: "init", Err: err}
	}
	return &FileSaver{
		dir:    dir,
		logger: logger.With(zap.String("store", "file_checkpoint")),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *FileSaver) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

func (s *FileSaver) threadDir(threadID string) string {
	return filepath.Join(s.dir, threadID)
}

func (s *FileSaver) stepPath(threadID string, step int) string {
	return filepath.Join(s.threadDir(threadID), fmt.Sprintf("%010d.json", step))
}

func (s *FileSaver) Put(_ context.Context, cp *Checkpoint) error {
	lock := s.threadLock(cp.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	steps, err := s.steps(cp.ThreadID)
	if err != nil {
		return err
	}
	if n := len(steps); n > 0 && cp.Step <= steps[n-1] {
		return &Error{Code: CodeConflict, Op: "put", ThreadID: cp.ThreadID}
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}

	dir := s.threadDir(cp.ThreadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}

	// Atomic write: temp file then rename.
	path := s.stepPath(cp.ThreadID, cp.Step)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}

	s.logger.Debug("checkpoint written",
		zap.String("thread_id", cp.ThreadID),
		zap.Int("step", cp.Step),
		zap.String("next_node", cp.NextNode),
	)
	return nil
}

func (s *FileSaver) Get(_ context.Context, threadID string, step int) (*Checkpoint, error) {
	return s.read(threadID, s.stepPath(threadID, step), "get")
}

func (s *FileSaver) Latest(_ context.Context, threadID string) (*Checkpoint, error) {
	steps, err := s.steps(threadID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, &Error{Code: CodeNotFound, Op: "latest", ThreadID: threadID}
	}
	return s.read(threadID, s.stepPath(threadID, steps[len(steps)-1]), "latest")
}

func (s *FileSaver) List(_ context.Context, threadID string) ([]*Checkpoint, error) {
	steps, err := s.steps(threadID)
	if err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, 0, len(steps))
	for _, step := range steps {
		cp, err := s.read(threadID, s.stepPath(threadID, step), "list")
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// steps lists the thread's stored step numbers in ascending order. An
// absent thread directory is an empty history, not an error.
func (s *FileSaver) steps(threadID string) ([]int, error) {
	entries, err := os.ReadDir(s.threadDir(threadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Code: CodeIO, Op: "list", ThreadID: threadID, Err: err}
	}
	steps := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		step, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps, nil
}

func (s *FileSaver) read(threadID, path, op string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &Error{Code: CodeNotFound, Op: op, ThreadID: threadID}
	}
	if err != nil {
		return nil, &Error{Code: CodeIO, Op: op, ThreadID: threadID, Err: err}
	}
	cp, err := decode(data)
	if err != nil {
		return nil, &Error{Code: CodeCorrupt, Op: op, ThreadID: threadID, Err: err}
	}
	return cp, nil
}
