package piv

import (
	"fmt"

	"github.com/banshee-data/flowfield/field"
)

// Grid holds the interrogation-window center coordinates for one pass, both
// as 2-D meshes and as the 1-D axis vectors the meshes are built from. The
// axis vectors feed the spline resampler, the meshes are what callers get
// back in the result.
type Grid struct {
	// X and Y are the window-center coordinate meshes, shape
	// len(Ys) x len(Xs), in pixels. X varies along columns, Y along rows.
	X *field.Field
	Y *field.Field

	// Xs and Ys are the distinct center coordinates per axis.
	Xs []float64
	Ys []float64
}

// Rows returns the grid row count.
func (g *Grid) Rows() int { return len(g.Ys) }

// Cols returns the grid column count.
func (g *Grid) Cols() int { return len(g.Xs) }

// BuildGrid computes the interrogation grid for a frame of the given shape.
// Centers start at window/2 and step by window-overlap; windows that would
// extend past the far edge are dropped, so every center keeps a full window
// inside the frame.
func BuildGrid(frameRows, frameCols, window, overlap int) (*Grid, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window size %d", ErrInvalidParameter, window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: overlap %d for window %d", ErrInvalidParameter, overlap, window)
	}
	if window > frameRows || window > frameCols {
		return nil, fmt.Errorf("%w: window %d exceeds frame %dx%d",
			ErrInvalidParameter, window, frameRows, frameCols)
	}

	step := window - overlap
	rows := (frameRows-window)/step + 1
	cols := (frameCols-window)/step + 1

	g := &Grid{
		X:  field.New(rows, cols),
		Y:  field.New(rows, cols),
		Xs: make([]float64, cols),
		Ys: make([]float64, rows),
	}
	half := float64(window) / 2
	for c := range g.Xs {
		g.Xs[c] = half + float64(c*step)
	}
	for r := range g.Ys {
		g.Ys[r] = half + float64(r*step)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.X.Set(r, c, g.Xs[c])
			g.Y.Set(r, c, g.Ys[r])
		}
	}
	return g, nil
}
