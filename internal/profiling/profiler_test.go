package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_StartCPU(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "cpu.prof")

	p := NewProfiler()
	cleanup, err := p.StartCPU(path)
	require.NoError(t, err)

	// Do some work to generate CPU data
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	_ = sum

	cleanup()

	// Verify file was created and has content
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestProfiler_WriteHeap(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "heap.prof")

	p := NewProfiler()
	err := p.WriteHeap(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestProfiler_WriteGoroutine(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "goroutine.prof")

	p := NewProfiler()
	err := p.WriteGoroutine(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
