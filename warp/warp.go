// Package warp resamples frame intensities at displaced source positions,
// implementing the window-deformation step of the multi-pass engine.
//
// The core primitive samples an output pixel (row, col) from the input at
// (row - v, col + u). Source coordinates outside the frame clamp to the
// nearest edge. Resampling orders: 0 (nearest), 1 (bilinear) and
// 3 (Catmull-Rom cubic).
package warp

import (
	"fmt"
	"math"

	"github.com/banshee-data/flowfield/field"
)

// Resample warps frame by a dense per-pixel displacement field. u and v
// must have the same shape as frame; the output pixel (r, c) is sampled
// from (r - v(r,c), c + u(r,c)).
func Resample(frame, u, v *field.Field, order int) (*field.Field, error) {
	if !frame.SameShape(u) || !frame.SameShape(v) {
		return nil, fmt.Errorf("warp: displacement shape %dx%d does not match frame %dx%d",
			u.Rows, u.Cols, frame.Rows, frame.Cols)
	}
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	out := field.New(frame.Rows, frame.Cols)
	for r := 0; r < frame.Rows; r++ {
		for c := 0; c < frame.Cols; c++ {
			sy := float64(r) - v.At(r, c)
			sx := float64(c) + u.At(r, c)
			out.Set(r, c, sample(frame, sy, sx, order))
		}
	}
	return out, nil
}

func checkOrder(order int) error {
	switch order {
	case 0, 1, 3:
		return nil
	default:
		return fmt.Errorf("warp: unsupported resampling order %d (want 0, 1 or 3)", order)
	}
}

// sample reads the frame at a fractional position with edge clamping.
func sample(f *field.Field, y, x float64, order int) float64 {
	y = clampF(y, 0, float64(f.Rows-1))
	x = clampF(x, 0, float64(f.Cols-1))
	switch order {
	case 0:
		return f.At(int(math.Round(y)), int(math.Round(x)))
	case 1:
		return bilinear(f, y, x)
	default:
		return catmullRom(f, y, x)
	}
}

func bilinear(f *field.Field, y, x float64) float64 {
	y0 := int(math.Floor(y))
	x0 := int(math.Floor(x))
	y1 := clampI(y0+1, 0, f.Rows-1)
	x1 := clampI(x0+1, 0, f.Cols-1)
	fy := y - float64(y0)
	fx := x - float64(x0)

	top := f.At(y0, x0)*(1-fx) + f.At(y0, x1)*fx
	bot := f.At(y1, x0)*(1-fx) + f.At(y1, x1)*fx
	return top*(1-fy) + bot*fy
}

// catmullRom applies separable cubic convolution over the 4x4 neighborhood,
// with neighbor indices clamped at the frame edges.
func catmullRom(f *field.Field, y, x float64) float64 {
	y0 := int(math.Floor(y))
	x0 := int(math.Floor(x))
	fy := y - float64(y0)
	fx := x - float64(x0)

	var wy, wx [4]float64
	cubicWeights(fy, &wy)
	cubicWeights(fx, &wx)

	var acc float64
	for i := 0; i < 4; i++ {
		r := clampI(y0-1+i, 0, f.Rows-1)
		var rowAcc float64
		for j := 0; j < 4; j++ {
			c := clampI(x0-1+j, 0, f.Cols-1)
			rowAcc += wx[j] * f.At(r, c)
		}
		acc += wy[i] * rowAcc
	}
	return acc
}

// cubicWeights fills w with Catmull-Rom kernel weights for the four taps at
// offsets -1..2 around the sample fraction t in [0, 1).
func cubicWeights(t float64, w *[4]float64) {
	// Kernel a = -0.5.
	t2 := t * t
	t3 := t2 * t
	w[0] = -0.5*t3 + t2 - 0.5*t
	w[1] = 1.5*t3 - 2.5*t2 + 1
	w[2] = -1.5*t3 + 2*t2 + 0.5*t
	w[3] = 0.5*t3 - 0.5*t2
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
