package validate

import (
	"math"

	"github.com/banshee-data/flowfield/field"
)

// GaussianSmoother smooths a whole displacement component with a separable
// Gaussian kernel, renormalized at the field edges. It backs the engine's
// between-pass smoothing hook.
type GaussianSmoother struct {
	// Sigma is the kernel standard deviation in grid cells. Values at or
	// below zero make Smooth a no-op copy.
	Sigma float64
}

// Smooth returns the smoothed copy of f.
func (s GaussianSmoother) Smooth(f *field.Field) *field.Field {
	if s.Sigma <= 0 {
		return f.Clone()
	}
	radius := int(math.Ceil(3 * s.Sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * s.Sigma * s.Sigma))
	}

	// Horizontal pass.
	mid := field.New(f.Rows, f.Cols)
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			var acc, wSum float64
			for k := -radius; k <= radius; k++ {
				cc := c + k
				if cc < 0 || cc >= f.Cols {
					continue
				}
				w := kernel[k+radius]
				acc += w * f.At(r, cc)
				wSum += w
			}
			mid.Set(r, c, acc/wSum)
		}
	}

	// Vertical pass.
	out := field.New(f.Rows, f.Cols)
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			var acc, wSum float64
			for k := -radius; k <= radius; k++ {
				rr := r + k
				if rr < 0 || rr >= f.Rows {
					continue
				}
				w := kernel[k+radius]
				acc += w * mid.At(rr, c)
				wSum += w
			}
			out.Set(r, c, acc/wSum)
		}
	}
	return out
}
