package warp

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/spline"
)

// Request carries one window-deformation job: a frame, the coarse
// displacement field on its interrogation grid, and the interpolation
// orders for field densification and pixel resampling.
//
// The vertical component follows the sampling contract of Resample: the
// output pixel (r, c) is read from (r - v, c + u), so callers working in a
// y-up displacement convention negate their vertical component first.
type Request struct {
	Frame *field.Field

	// GridY and GridX are the 1-D axis coordinates of the interrogation
	// grid (window-center positions, pixels).
	GridY []float64
	GridX []float64

	// U and V are the coarse displacement components on the grid, shape
	// len(GridY) x len(GridX).
	U *field.Field
	V *field.Field

	FieldOrder int // spline order for densifying U, V to per-pixel (1..3)
	ImageOrder int // pixel resampling order (0, 1 or 3)
}

func (req *Request) validate() error {
	if req.Frame == nil || req.U == nil || req.V == nil {
		return fmt.Errorf("warp: nil frame or displacement field")
	}
	if req.U.Rows != len(req.GridY) || req.U.Cols != len(req.GridX) || !req.U.SameShape(req.V) {
		return fmt.Errorf("warp: displacement shape %dx%d does not match grid %dx%d",
			req.U.Rows, req.U.Cols, len(req.GridY), len(req.GridX))
	}
	return checkOrder(req.ImageOrder)
}

// fit prepares the densification splines. Padding covers the full frame
// extent regardless of where the fit is evaluated, so full-frame and tiled
// execution see identical dense fields.
func (req *Request) fit() (su, sv *spline.Spline2D, err error) {
	coverY := [2]float64{0, float64(req.Frame.Rows - 1)}
	coverX := [2]float64{0, float64(req.Frame.Cols - 1)}
	su, err = spline.Fit2D(req.GridY, req.GridX, req.U, req.FieldOrder, spline.PadEdges, coverY, coverX)
	if err != nil {
		return nil, nil, err
	}
	sv, err = spline.Fit2D(req.GridY, req.GridX, req.V, req.FieldOrder, spline.PadEdges, coverY, coverX)
	if err != nil {
		return nil, nil, err
	}
	return su, sv, nil
}

// Deformer warps a frame by a coarse displacement field. Implementations
// must be behaviorally identical; they may differ only in how much of the
// dense per-pixel field they materialize at once.
type Deformer interface {
	Deform(req Request) (*field.Field, error)
}

// Full materializes the dense per-pixel displacement field for the whole
// frame in one shot. Simplest and fastest for frames that fit comfortably
// in memory.
type Full struct{}

// Deform implements Deformer.
func (Full) Deform(req Request) (*field.Field, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	su, sv, err := req.fit()
	if err != nil {
		return nil, err
	}
	ys := pixelAxis(req.Frame.Rows)
	xs := pixelAxis(req.Frame.Cols)
	ut, err := su.Eval(ys, xs)
	if err != nil {
		return nil, err
	}
	vt, err := sv.Eval(ys, xs)
	if err != nil {
		return nil, err
	}
	return Resample(req.Frame, ut, vt, req.ImageOrder)
}

// Tiled computes the output in independent bounded tiles, densifying the
// displacement field only over each tile. Peak working memory is bounded by
// the tile size instead of the frame size; results are identical to Full.
type Tiled struct {
	// TileSize is the tile edge length in pixels. Zero selects a default.
	TileSize int
	// Workers bounds concurrent tile computation. Zero means GOMAXPROCS.
	Workers int
}

// DefaultTileSize keeps one tile's dense field under a few MB.
const DefaultTileSize = 512

// Deform implements Deformer.
func (d Tiled) Deform(req Request) (*field.Field, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	su, sv, err := req.fit()
	if err != nil {
		return nil, err
	}

	tile := d.TileSize
	if tile <= 0 {
		tile = DefaultTileSize
	}
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := field.New(req.Frame.Rows, req.Frame.Cols)
	var g errgroup.Group
	g.SetLimit(workers)
	for r0 := 0; r0 < req.Frame.Rows; r0 += tile {
		for c0 := 0; c0 < req.Frame.Cols; c0 += tile {
			r1 := min(r0+tile, req.Frame.Rows)
			c1 := min(c0+tile, req.Frame.Cols)
			g.Go(func() error {
				return deformTile(req, su, sv, out, r0, r1, c0, c1)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// deformTile fills out[r0:r1, c0:c1]. Tiles write disjoint regions of the
// shared output, so no synchronization is needed.
func deformTile(req Request, su, sv *spline.Spline2D, out *field.Field, r0, r1, c0, c1 int) error {
	ys := make([]float64, r1-r0)
	for i := range ys {
		ys[i] = float64(r0 + i)
	}
	xs := make([]float64, c1-c0)
	for j := range xs {
		xs[j] = float64(c0 + j)
	}
	ut, err := su.Eval(ys, xs)
	if err != nil {
		return err
	}
	vt, err := sv.Eval(ys, xs)
	if err != nil {
		return err
	}
	for i, yv := range ys {
		for j, xv := range xs {
			sy := yv - vt.At(i, j)
			sx := xv + ut.At(i, j)
			out.Set(r0+i, c0+j, sample(req.Frame, sy, sx, req.ImageOrder))
		}
	}
	return nil
}

func pixelAxis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
