package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	opts, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, opts.MaxSteps)
	assert.Equal(t, "checkpoints", opts.CheckpointDir)
	assert.Equal(t, "localhost:6379", opts.Redis.Addr)
	assert.Equal(t, "skein", opts.Redis.KeyPrefix)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), opts)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skein.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_steps: 50
checkpoint_dir: /var/lib/skein
redis:
  addr: redis.internal:6379
  db: 2
`), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, opts.MaxSteps)
	assert.Equal(t, "/var/lib/skein", opts.CheckpointDir)
	assert.Equal(t, "redis.internal:6379", opts.Redis.Addr)
	assert.Equal(t, 2, opts.Redis.DB)
	assert.Equal(t, "skein", opts.Redis.KeyPrefix, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skein.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: 50\n"), 0o644))
	t.Setenv("SKEIN_MAX_STEPS", "7")
	t.Setenv("SKEIN_REDIS_ADDR", "env.redis:6380")

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.MaxSteps)
	assert.Equal(t, "env.redis:6380", opts.Redis.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skein.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: [oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveMaxSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skein.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_steps: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")
}
