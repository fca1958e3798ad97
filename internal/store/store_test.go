package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/piv"
)

func testResult() *piv.Result {
	u := field.FromSlice(2, 3, []float64{1, 2, 3, 4, 5, 6})
	v := field.FromSlice(2, 3, []float64{-1, -2, -3, -4, -5, -6})
	x := field.FromSlice(2, 3, []float64{16, 32, 48, 16, 32, 48})
	y := field.FromSlice(2, 3, []float64{32, 32, 32, 16, 16, 16})
	flags := field.NewMask(2, 3)
	flags.Set(0, 1, true)
	mask := field.NewMask(2, 3)
	mask.Set(1, 2, true)
	return &piv.Result{X: x, Y: y, U: u, V: v, Flags: flags, GridMask: mask}
}

func TestRecordAndReadBack(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	settings := piv.DefaultSettings()
	runID, err := s.RecordRun("a_0001.png", "a_0002.png", settings, testResult())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := s.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, "a_0001.png", runs[0].FrameA)
	assert.Equal(t, []int{64, 32}, runs[0].WindowSizes)
	assert.Equal(t, []int{32, 16}, runs[0].Overlaps)
	assert.Equal(t, 2, runs[0].GridRows)
	assert.Equal(t, 3, runs[0].GridCols)
	assert.Equal(t, 1, runs[0].FlaggedCells)
	assert.Equal(t, 1, runs[0].MaskedCells)

	vecs, err := s.Vectors(runID)
	require.NoError(t, err)
	require.Len(t, vecs, 6)
	assert.Equal(t, 0, vecs[0].GridRow)
	assert.Equal(t, 1.0, vecs[0].U)
	assert.True(t, vecs[1].Flagged)
	assert.True(t, vecs[5].Masked)
	assert.Equal(t, 48.0, vecs[5].X)
}

func TestVectorsUnknownRun(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	vecs, err := s.Vectors("nope")
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
