package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFrames(t *testing.T, names ...string) string {
	t.Helper()
	d := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(d, n), []byte("x"), 0o644))
	}
	return d
}

func TestCollectPairsDirectory(t *testing.T) {
	d := setupFrames(t, "run_0003.png", "run_0001.png", "run_0002.png", "run_0004.png", "notes.txt")

	*frameA, *frameB = "", ""
	*dir = d

	*step = 1
	pairs, err := collectPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 3) // sliding: (1,2) (2,3) (3,4)
	assert.Equal(t, filepath.Join(d, "run_0001.png"), pairs[0].a)
	assert.Equal(t, filepath.Join(d, "run_0002.png"), pairs[0].b)
	assert.Equal(t, filepath.Join(d, "run_0002.png"), pairs[1].a)

	*step = 2
	pairs, err = collectPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 2) // disjoint: (1,2) (3,4)
	assert.Equal(t, filepath.Join(d, "run_0003.png"), pairs[1].a)
	assert.Equal(t, filepath.Join(d, "run_0004.png"), pairs[1].b)

	*step = 0
	_, err = collectPairs()
	assert.Error(t, err)
}

func TestCollectPairsSingle(t *testing.T) {
	*dir = ""
	*step = 1
	*frameA, *frameB = "a.png", "b.png"
	pairs, err := collectPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "a.png", pairs[0].a)

	*frameB = ""
	_, err = collectPairs()
	assert.Error(t, err)
}
