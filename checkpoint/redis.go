package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSaver persists checkpoint chains in Redis: one key per checkpoint
// plus a per-thread sorted set indexed by step.
//
// Append-only ordering is enforced against the index before every write.
// Like the executor it serves, RedisSaver assumes a single writer per
// thread id; multiple executor processes sharing a thread need an external
// single-writer lease.
type RedisSaver struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisSaver wraps an existing client. prefix namespaces all keys;
// empty defaults to "skein".
func NewRedisSaver(client *redis.Client, prefix string, logger *zap.Logger) *RedisSaver {
	if prefix == "" {
		prefix = "skein"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSaver{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("store", "redis_checkpoint")),
	}
}

func (s *RedisSaver) checkpointKey(threadID string, step int) string {
	return fmt.Sprintf("%s:cp:%s:%d", s.prefix, threadID, step)
}

func (s *RedisSaver) threadKey(threadID string) string {
	return fmt.Sprintf("%s:thread:%s", s.prefix, threadID)
}

func (s *RedisSaver) Put(ctx context.Context, cp *Checkpoint) error {
	latest, err := s.latestStep(ctx, cp.ThreadID)
	if err != nil {
		return err
	}
	if latest != nil && cp.Step <= *latest {
		return &Error{Code: CodeConflict, Op: "put", ThreadID: cp.ThreadID}
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(cp.ThreadID, cp.Step), data, 0)
	pipe.ZAdd(ctx, s.threadKey(cp.ThreadID), redis.Z{
		Score:  float64(cp.Step),
		Member: strconv.Itoa(cp.Step),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return &Error{Code: CodeIO, Op: "put", ThreadID: cp.ThreadID, Err: err}
	}

	s.logger.Debug("checkpoint written",
		zap.String("thread_id", cp.ThreadID),
		zap.Int("step", cp.Step),
	)
	return nil
}

// latestStep returns the highest indexed step, or nil for an empty thread.
func (s *RedisSaver) latestStep(ctx context.Context, threadID string) (*int, error) {
	members, err := s.client.ZRevRange(ctx, s.threadKey(threadID), 0, 0).Result()
	if err != nil {
		return nil, &Error{Code: CodeIO, Op: "latest", ThreadID: threadID, Err: err}
	}
	if len(members) == 0 {
		return nil, nil
	}
	step, err := strconv.Atoi(members[0])
	if err != nil {
		return nil, &Error{Code: CodeCorrupt, Op: "latest", ThreadID: threadID, Err: err}
	}
	return &step, nil
}

func (s *RedisSaver) Get(ctx context.Context, threadID string, step int) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(threadID, step)).Bytes()
	if err == redis.Nil {
		return nil, &Error{Code: CodeNotFound, Op: "get", ThreadID: threadID}
	}
	if err != nil {
		return nil, &Error{Code: CodeIO, Op: "get", ThreadID: threadID, Err: err}
	}
	cp, err := decode(data)
	if err != nil {
		return nil, &Error{Code: CodeCorrupt, Op: "get", ThreadID: threadID, Err: err}
	}
	return cp, nil
}

func (s *RedisSaver) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	step, err := s.latestStep(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, &Error{Code: CodeNotFound, Op: "latest", ThreadID: threadID}
	}
	return s.Get(ctx, threadID, *step)
}

func (s *RedisSaver) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	members, err := s.client.ZRange(ctx, s.threadKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, &Error{Code: CodeIO, Op: "list", ThreadID: threadID, Err: err}
	}
	out := make([]*Checkpoint, 0, len(members))
	for _, m := range members {
		step, err := strconv.Atoi(m)
		if err != nil {
			return nil, &Error{Code: CodeCorrupt, Op: "list", ThreadID: threadID, Err: err}
		}
		cp, err := s.Get(ctx, threadID, step)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
