package correlate

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowfield/field"
)

// particleImage renders a synthetic seeded-flow frame: Gaussian particles
// at rng-chosen positions, evaluated analytically so a shifted frame is an
// exact translation of the same scene (no resampling error).
func particleImage(rows, cols int, seed int64, shiftRows, shiftCols float64) *field.Field {
	rng := rand.New(rand.NewSource(seed))
	n := rows * cols / 48 // seeding density
	type particle struct{ r, c float64 }
	parts := make([]particle, n)
	for i := range parts {
		parts[i] = particle{
			r: rng.Float64() * float64(rows),
			c: rng.Float64() * float64(cols),
		}
	}
	const sigma = 1.2
	f := field.New(rows, cols)
	for _, p := range parts {
		pr := p.r + shiftRows
		pc := p.c + shiftCols
		r0 := int(math.Max(0, pr-4))
		r1 := int(math.Min(float64(rows-1), pr+4))
		c0 := int(math.Max(0, pc-4))
		c1 := int(math.Min(float64(cols-1), pc+4))
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				d2 := (float64(r)-pr)*(float64(r)-pr) + (float64(c)-pc)*(float64(c)-pc)
				f.Data[r*cols+c] += 200 * math.Exp(-d2/(2*sigma*sigma))
			}
		}
	}
	return f
}

func TestFieldShape(t *testing.T) {
	tests := []struct {
		frameR, frameC, w, o int
		wantRows, wantCols   int
	}{
		{64, 64, 32, 16, 3, 3},
		{256, 256, 32, 16, 15, 15},
		{256, 256, 16, 8, 31, 31},
		{100, 80, 32, 16, 5, 4},
		{32, 32, 32, 0, 1, 1},
	}
	for _, tt := range tests {
		r, c := FieldShape(tt.frameR, tt.frameC, tt.w, tt.o)
		assert.Equal(t, tt.wantRows, r, "rows for %+v", tt)
		assert.Equal(t, tt.wantCols, c, "cols for %+v", tt)
	}
}

func TestCorrelateRecoversIntegerShift(t *testing.T) {
	a := particleImage(64, 64, 7, 0, 0)
	b := particleImage(64, 64, 7, 3, 5) // scene moves 3 rows down, 5 cols right

	res, err := FFT{}.Correlate(a, b, Params{
		WindowSize: 32,
		Overlap:    16,
		Method:     Circular,
		Normalized: true,
		Subpixel:   Gaussian,
		SNR:        Peak2Peak,
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)
	require.Equal(t, 3, res.Cols)

	for i := range res.U {
		require.False(t, res.Degenerate[i], "window %d degenerate", i)
		assert.InDelta(t, 5.0, res.U[i], 0.1, "u at window %d", i)
		assert.InDelta(t, 3.0, res.V[i], 0.1, "v at window %d", i)
		assert.Greater(t, res.SNR[i], 1.5, "snr at window %d", i)
	}
}

func TestCorrelateSubpixelShift(t *testing.T) {
	a := particleImage(96, 96, 11, 0, 0)
	b := particleImage(96, 96, 11, -1.25, 2.5)

	res, err := FFT{}.Correlate(a, b, Params{
		WindowSize: 32,
		Overlap:    16,
		Method:     Circular,
		Normalized: true,
		Subpixel:   Gaussian,
		SNR:        SNRNone,
	})
	require.NoError(t, err)
	for i := range res.U {
		assert.InDelta(t, 2.5, res.U[i], 0.15, "u at window %d", i)
		assert.InDelta(t, -1.25, res.V[i], 0.15, "v at window %d", i)
		assert.True(t, math.IsNaN(res.SNR[i]), "snr sentinel at window %d", i)
	}
}

// A displacement beyond half the window aliases under circular
// correlation; a widened search area recovers it.
func TestCorrelateSearchArea(t *testing.T) {
	a := particleImage(96, 96, 13, 0, 0)
	b := particleImage(96, 96, 13, 0, 11) // 11 px > 16/2

	res, err := FFT{}.Correlate(a, b, Params{
		WindowSize:     16,
		Overlap:        8,
		SearchAreaSize: 32,
		Method:         Circular,
		Normalized:     true,
		Subpixel:       Gaussian,
		SNR:            SNRNone,
	})
	require.NoError(t, err)

	// Interior windows see the full search area; edge windows lose part
	// of it to the frame boundary, so check the interior only.
	for r := 2; r < res.Rows-2; r++ {
		for c := 2; c < res.Cols-2; c++ {
			i := r*res.Cols + c
			assert.InDelta(t, 11.0, res.U[i], 0.2, "u at window (%d,%d)", r, c)
			assert.InDelta(t, 0.0, res.V[i], 0.2, "v at window (%d,%d)", r, c)
		}
	}
}

func TestCorrelateLinearMethod(t *testing.T) {
	a := particleImage(64, 64, 17, 0, 0)
	b := particleImage(64, 64, 17, 2, -4)

	res, err := FFT{}.Correlate(a, b, Params{
		WindowSize: 32,
		Overlap:    16,
		Method:     Linear,
		Normalized: true,
		Subpixel:   Gaussian,
		SNR:        SNRNone,
	})
	require.NoError(t, err)
	for i := range res.U {
		assert.InDelta(t, -4.0, res.U[i], 0.15, "u at window %d", i)
		assert.InDelta(t, 2.0, res.V[i], 0.15, "v at window %d", i)
	}
}

// Zero-variance windows are reported degenerate, never an error.
func TestCorrelateDegenerateWindows(t *testing.T) {
	a := field.New(64, 64).Fill(50)
	b := field.New(64, 64).Fill(50)
	res, err := FFT{}.Correlate(a, b, Params{
		WindowSize: 32,
		Overlap:    16,
		Method:     Circular,
		Subpixel:   Gaussian,
		SNR:        Peak2Peak,
	})
	require.NoError(t, err)
	for i := range res.Degenerate {
		assert.True(t, res.Degenerate[i], "window %d", i)
		assert.Zero(t, res.U[i])
		assert.Zero(t, res.V[i])
		assert.Zero(t, res.SNR[i])
	}
}

func TestCorrelateParamValidation(t *testing.T) {
	a := particleImage(64, 64, 1, 0, 0)
	b := particleImage(64, 64, 1, 0, 0)

	_, err := FFT{}.Correlate(a, b, Params{WindowSize: 16, Overlap: 16})
	assert.Error(t, err, "overlap >= window")

	_, err = FFT{}.Correlate(a, b, Params{WindowSize: 128, Overlap: 0})
	assert.Error(t, err, "window larger than frame")

	_, err = FFT{}.Correlate(a, b, Params{WindowSize: 32, Overlap: 16, SearchAreaSize: 16})
	assert.Error(t, err, "search area smaller than window")

	c := field.New(32, 32)
	_, err = FFT{}.Correlate(a, c, Params{WindowSize: 16, Overlap: 8})
	assert.Error(t, err, "shape mismatch")
}

func TestThreePointEstimators(t *testing.T) {
	// Symmetric neighborhood: offset must be zero for every estimator.
	for _, m := range []Subpixel{Gaussian, Centroid, Parabolic} {
		assert.Zero(t, threePoint(0.5, 1.0, 0.5, m), "method %v", m)
	}

	// Samples from a Gaussian peaked at +0.3: the Gaussian estimator is
	// exact, the parabola close.
	peakAt := 0.3
	g := func(x float64) float64 { return math.Exp(-(x - peakAt) * (x - peakAt)) }
	assert.InDelta(t, peakAt, threePoint(g(-1), g(0), g(1), Gaussian), 1e-9)
	assert.InDelta(t, peakAt, threePoint(g(-1), g(0), g(1), Parabolic), 0.05)
}

func TestWrapSigned(t *testing.T) {
	assert.Equal(t, 3.0, wrapSigned(3, 32))
	assert.Equal(t, -2.0, wrapSigned(30, 32))
	assert.Equal(t, -16.0, wrapSigned(16, 32))
	assert.Equal(t, 1.5, wrapSigned(33.5, 32))
}
