package audioconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32ToInt16(t *testing.T) {
	out := Float32ToInt16([]float32{0, 1, -1, 2, -2, 0.5})
	assert.Equal(t, []int{0, 32767, -32767, 32767, -32767, 16383}, out)
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, WriteWAV(path, []float32{0, 0.1, -0.1, 0.2}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44)) // header plus samples
}

func TestDumpWAVCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	require.NoError(t, DumpWAV(dir, []float32{0.1, 0.2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
