package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Enabled(t *testing.T) {
	assert.False(t, Options{}.Enabled())
	assert.True(t, Options{Heap: "heap.prof"}.Enabled())
}

func TestSession_WritesRequestedProfiles(t *testing.T) {
	// Given: all three profiles requested
	dir := t.TempDir()
	opts := Options{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Heap:  filepath.Join(dir, "heap.prof"),
		Trace: filepath.Join(dir, "trace.out"),
	}

	// When: a session runs some work and stops twice
	s, err := Start(opts)
	require.NoError(t, err)
	sum := 0
	for i := 0; i < 100000; i++ {
		sum += i
	}
	_ = sum
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	// Then: every file exists and is non-empty
	for _, path := range []string{opts.CPU, opts.Heap, opts.Trace} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}

func TestStart_InvalidPath(t *testing.T) {
	_, err := Start(Options{CPU: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	assert.Error(t, err)
}

func TestSession_StopNil(t *testing.T) {
	var s *Session
	assert.NoError(t, s.Stop())
}
