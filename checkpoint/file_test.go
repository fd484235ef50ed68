package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSaver_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileSaver(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, mkCheckpoint("t1", 0, nil)))
	parent := 0
	require.NoError(t, first.Put(ctx, mkCheckpoint("t1", 1, &parent)))

	// A new instance over the same directory sees the full history and
	// still enforces append-only ordering against it.
	second, err := NewFileSaver(dir, nil)
	require.NoError(t, err)

	latest, err := second.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Step)

	err = second.Put(ctx, mkCheckpoint("t1", 1, &parent))
	assert.True(t, IsConflict(err))
}

func TestFileSaver_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileSaver(dir, nil)
	require.NoError(t, err)

	for step := 0; step < 5; step++ {
		require.NoError(t, s.Put(ctx, mkCheckpoint("t1", step, nil)))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "t1"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Regexp(t, `^\d{10}\.json$`, e.Name())
	}
}

func TestFileSaver_CorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileSaver(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, mkCheckpoint("t1", 0, nil)))

	path := filepath.Join(dir, "t1", "0000000000.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err = s.Get(ctx, "t1", 0)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeCorrupt, ce.Code)
}

func TestFileSaver_IgnoresStrayFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileSaver(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, mkCheckpoint("t1", 0, nil)))

	// Editor droppings and stale temp files must not break step listing.
	threadDir := filepath.Join(dir, "t1")
	require.NoError(t, os.WriteFile(filepath.Join(threadDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(threadDir, "0000000009.json.tmp"), []byte("x"), 0o644))

	chain, err := s.List(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestFileSaver_StepOrderingBeyondLexicographic(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSaver(t.TempDir(), nil)
	require.NoError(t, err)

	// Steps 0..11 cross the single-digit boundary; zero-padded names plus
	// numeric sorting must keep them in step order.
	for step := 0; step < 12; step++ {
		require.NoError(t, s.Put(ctx, mkCheckpoint("t1", step, nil)))
	}

	latest, err := s.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 11, latest.Step)
}
