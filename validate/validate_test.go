package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowfield/field"
)

func uniformPair(rows, cols int, uVal, vVal float64) (*field.Field, *field.Field) {
	u := field.New(rows, cols)
	v := field.New(rows, cols)
	u.Fill(uVal)
	v.Fill(vVal)
	return u, v
}

func TestLocalMedianFlagsSingleOutlier(t *testing.T) {
	u, v := uniformPair(8, 8, 2.0, -1.0)
	u.Set(4, 4, 20.0) // ten times the neighborhood

	flags := Displacement(u, v, nil, nil, Config{
		LocalMedian:     true,
		MedianThreshold: 3.0,
		MedianKernel:    1,
	})

	require.Equal(t, 1, flags.Count())
	assert.True(t, flags.At(4, 4))
}

func TestReplaceOutliersFillsFromNeighborhood(t *testing.T) {
	u, v := uniformPair(8, 8, 2.0, -1.0)
	u.Set(4, 4, 20.0)
	v.Set(4, 4, 15.0)

	flags := field.NewMask(8, 8)
	flags.Set(4, 4, true)

	stats := ReplaceOutliers(u, v, flags, nil, LocalMean, 3, 1)

	assert.Equal(t, 1, stats.Repaired)
	assert.Equal(t, 0, stats.Remaining)
	assert.InDelta(t, 2.0, u.At(4, 4), 1e-12)
	assert.InDelta(t, -1.0, v.At(4, 4), 1e-12)
	// Flags stay as the record of what was interpolated.
	assert.True(t, flags.At(4, 4))
}

func TestGlobalBounds(t *testing.T) {
	u, v := uniformPair(4, 4, 1.0, 0.0)
	u.Set(0, 0, -9.0)
	v.Set(3, 3, 50.0)

	flags := Displacement(u, v, nil, nil, Config{
		GlobalBounds: true,
		MinU:         -5, MaxU: 5,
		MinV: -5, MaxV: 5,
	})

	assert.Equal(t, 2, flags.Count())
	assert.True(t, flags.At(0, 0))
	assert.True(t, flags.At(3, 3))
}

func TestSNRFloor(t *testing.T) {
	u, v := uniformPair(3, 3, 1.0, 1.0)
	snr := field.New(3, 3)
	snr.Fill(4.0)
	snr.Set(1, 1, 1.01)
	snr.Set(2, 2, math.NaN()) // scoring disabled for this cell

	flags := Displacement(u, v, snr, nil, Config{
		SNRFloor:     true,
		SNRThreshold: 1.3,
	})

	assert.Equal(t, 1, flags.Count())
	assert.True(t, flags.At(1, 1))
	assert.False(t, flags.At(2, 2))
}

func TestExcludedCellsNeverParticipate(t *testing.T) {
	u, v := uniformPair(5, 5, 2.0, 2.0)
	u.Set(2, 2, 100.0) // excluded cell carries garbage

	exclude := field.NewMask(5, 5)
	exclude.Set(2, 2, true)

	flags := Displacement(u, v, nil, exclude, Config{
		GlobalBounds: true,
		MinU:         -5, MaxU: 5,
		MinV: -5, MaxV: 5,
		LocalMedian:     true,
		MedianThreshold: 3.0,
		MedianKernel:    1,
	})

	// Neither the excluded cell nor its neighbors get flagged: the
	// garbage value is invisible to the median kernels around it.
	assert.Equal(t, 0, flags.Count())
}

func TestReplaceOutliersRelaxesInward(t *testing.T) {
	// A 3x3 block of flagged cells: the ring repairs on sweep one, the
	// center needs the second sweep.
	u, v := uniformPair(9, 9, 3.0, -2.0)
	flags := field.NewMask(9, 9)
	for r := 3; r <= 5; r++ {
		for c := 3; c <= 5; c++ {
			u.Set(r, c, 99.0)
			v.Set(r, c, 99.0)
			flags.Set(r, c, true)
		}
	}

	stats := ReplaceOutliers(u, v, flags, nil, Distance, 5, 1)

	assert.Equal(t, 2, stats.Iterations)
	assert.Equal(t, 9, stats.Repaired)
	assert.Equal(t, 0, stats.Remaining)
	for r := 3; r <= 5; r++ {
		for c := 3; c <= 5; c++ {
			assert.InDelta(t, 3.0, u.At(r, c), 1e-9)
			assert.InDelta(t, -2.0, v.At(r, c), 1e-9)
		}
	}
}

func TestReplaceOutliersReportsUnreachable(t *testing.T) {
	// Every non-excluded cell is flagged, so no valid sources exist.
	u, v := uniformPair(4, 4, 1.0, 1.0)
	flags := field.NewMask(4, 4)
	for i := range flags.Data {
		flags.Data[i] = true
	}

	stats := ReplaceOutliers(u, v, flags, nil, LocalMean, 10, 1)

	assert.Equal(t, 0, stats.Repaired)
	assert.Equal(t, 16, stats.Remaining)
	assert.Equal(t, 1, stats.Iterations)
}

func TestGlobalStd(t *testing.T) {
	u := field.New(1, 10)
	v := field.New(1, 10)
	for c := 0; c < 10; c++ {
		u.Set(0, c, float64(c%2)) // alternating 0,1
	}
	u.Set(0, 5, 40.0)

	flags := Displacement(u, v, nil, nil, Config{
		GlobalStd:    true,
		StdThreshold: 2.5,
	})

	assert.Equal(t, 1, flags.Count())
	assert.True(t, flags.At(0, 5))
}

func TestGaussianSmootherPreservesConstant(t *testing.T) {
	f := field.New(6, 7)
	f.Fill(4.5)

	out := GaussianSmoother{Sigma: 1.2}.Smooth(f)

	for i, v := range out.Data {
		assert.InDeltaf(t, 4.5, v, 1e-12, "index %d", i)
	}
}

func TestGaussianSmootherReducesSpike(t *testing.T) {
	f := field.New(9, 9)
	f.Set(4, 4, 10.0)

	out := GaussianSmoother{Sigma: 1.0}.Smooth(f)

	assert.Less(t, out.At(4, 4), 5.0)
	assert.Greater(t, out.At(4, 4), out.At(4, 3))
	// Mass spreads but the field stays non-negative.
	for _, v := range out.Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestGaussianSmootherZeroSigmaIsCopy(t *testing.T) {
	f := field.New(3, 3)
	f.Set(1, 1, 7.0)

	out := GaussianSmoother{Sigma: 0}.Smooth(f)

	assert.Equal(t, f.Data, out.Data)
	out.Set(0, 0, 1.0)
	assert.Zero(t, f.At(0, 0))
}
