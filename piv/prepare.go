package piv

import (
	"fmt"

	"github.com/banshee-data/flowfield/field"
	"gonum.org/v1/gonum/floats"
)

// prepareFrames applies ROI cropping, intensity inversion, and static-mask
// zeroing to both frames and returns the working copies plus the ROI-cropped
// image mask (nil when no mask is configured). Shape conformance is the
// caller's job; mismatched inputs are fatal here.
func prepareFrames(a, b *field.Field, s *Settings) (fa, fb *field.Field, mask *field.Mask, err error) {
	if a == nil || b == nil {
		return nil, nil, nil, fmt.Errorf("%w: nil frame", ErrInvalidParameter)
	}
	if !a.SameShape(b) {
		return nil, nil, nil, fmt.Errorf("%w: frames %dx%d vs %dx%d",
			ErrShapeMismatch, a.Rows, a.Cols, b.Rows, b.Cols)
	}
	if s.StaticMask != nil && (s.StaticMask.Rows != a.Rows || s.StaticMask.Cols != a.Cols) {
		return nil, nil, nil, fmt.Errorf("%w: mask %dx%d vs frame %dx%d",
			ErrShapeMismatch, s.StaticMask.Rows, s.StaticMask.Cols, a.Rows, a.Cols)
	}

	fa, fb = a.Clone(), b.Clone()
	if s.StaticMask != nil {
		mask = s.StaticMask.Clone()
	}

	if s.ROI != nil {
		r := s.ROI
		if r.RowEnd > a.Rows || r.ColEnd > a.Cols {
			return nil, nil, nil, fmt.Errorf("%w: roi rows [%d,%d) cols [%d,%d) outside frame %dx%d",
				ErrInvalidParameter, r.RowStart, r.RowEnd, r.ColStart, r.ColEnd, a.Rows, a.Cols)
		}
		fa = cropField(fa, r)
		fb = cropField(fb, r)
		if mask != nil {
			mask = cropMask(mask, r)
		}
	}

	if s.InvertIntensity {
		invert(fa)
		invert(fb)
	}

	if mask != nil {
		zeroMasked(fa, mask)
		zeroMasked(fb, mask)
	}
	return fa, fb, mask, nil
}

func cropField(f *field.Field, r *ROI) *field.Field {
	out := field.New(r.RowEnd-r.RowStart, r.ColEnd-r.ColStart)
	for row := 0; row < out.Rows; row++ {
		src := f.Row(row + r.RowStart)[r.ColStart:r.ColEnd]
		copy(out.Row(row), src)
	}
	return out
}

func cropMask(m *field.Mask, r *ROI) *field.Mask {
	out := field.NewMask(r.RowEnd-r.RowStart, r.ColEnd-r.ColStart)
	for row := 0; row < out.Rows; row++ {
		for col := 0; col < out.Cols; col++ {
			out.Set(row, col, m.At(row+r.RowStart, col+r.ColStart))
		}
	}
	return out
}

// invert reflects every sample against the frame maximum, turning dark
// particles on a bright background into the bright-on-dark form the
// correlator prefers.
func invert(f *field.Field) {
	if len(f.Data) == 0 {
		return
	}
	max := floats.Max(f.Data)
	for i, v := range f.Data {
		f.Data[i] = max - v
	}
}

func zeroMasked(f *field.Field, m *field.Mask) {
	for i, bad := range m.Data {
		if bad {
			f.Data[i] = 0
		}
	}
}

// gridMask samples the image mask at each window center, marking grid cells
// whose center falls on an excluded pixel. A nil image mask yields an
// all-clear grid mask.
func gridMask(mask *field.Mask, g *Grid) *field.Mask {
	out := field.NewMask(g.Rows(), g.Cols())
	if mask == nil {
		return out
	}
	for r, y := range g.Ys {
		row := int(y + 0.5)
		if row >= mask.Rows {
			row = mask.Rows - 1
		}
		for c, x := range g.Xs {
			col := int(x + 0.5)
			if col >= mask.Cols {
				col = mask.Cols - 1
			}
			out.Set(r, c, mask.At(row, col))
		}
	}
	return out
}
