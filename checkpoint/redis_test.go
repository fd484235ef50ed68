package checkpoint

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSaver_KeyNamespacing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisSaver(client, "app", nil)

	require.NoError(t, s.Put(context.Background(), mkCheckpoint("t1", 0, nil)))

	assert.True(t, mr.Exists("app:cp:t1:0"))
	assert.True(t, mr.Exists("app:thread:t1"))
}

func TestRedisSaver_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisSaver(client, "", nil)

	require.NoError(t, s.Put(context.Background(), mkCheckpoint("t1", 0, nil)))
	assert.True(t, mr.Exists("skein:cp:t1:0"))
}

func TestRedisSaver_IndexAndValueWrittenTogether(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisSaver(client, "app", nil)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, mkCheckpoint("t1", 0, nil)))
	parent := 0
	require.NoError(t, s.Put(ctx, mkCheckpoint("t1", 1, &parent)))

	// Every indexed step must resolve to a stored checkpoint.
	chain, err := s.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	for i, cp := range chain {
		assert.Equal(t, i, cp.Step)
	}
}
