// Package spline implements the separable 2-D spline fit-and-evaluate
// primitive used to move displacement fields between interrogation grids
// and to densify coarse fields to per-pixel resolution.
//
// A 2-D resample over a rectilinear mesh decomposes into two 1-D passes:
// each source row is fitted and evaluated at the target column coordinates,
// then each intermediate column is fitted and evaluated at the target row
// coordinates. Supported fit orders are 1 (piecewise linear) and 3 (natural
// cubic); order 2 requests resolve to cubic.
package spline

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/flowfield/field"
)

// EdgePolicy selects how target coordinates outside the source coordinate
// range are handled.
type EdgePolicy int

const (
	// Extrapolate continues the end segment's polynomial beyond the
	// source range.
	Extrapolate EdgePolicy = iota
	// PadEdges symmetrically extends the source coordinate range with
	// constant (edge-replicated) values before fitting, so evaluation
	// never leaves the fitted range. Required for the dense per-pixel
	// path, which must cover the whole frame.
	PadEdges
)

// Spline2D is a separable spline fitted over a rectilinear mesh. Fit once,
// evaluate at any Cartesian product of target coordinates; evaluating the
// same fit tile by tile yields exactly the same values as one full
// evaluation.
type Spline2D struct {
	y, x  []float64
	z     *field.Field
	order int
}

// Fit2D fits a separable spline of the given order to z over the strictly
// increasing coordinate vectors (y, x). Under PadEdges the coordinate range
// is symmetrically extended with edge-replicated values until it covers
// [coverY[0], coverY[1]] x [coverX[0], coverX[1]], so the padding depends
// only on the declared cover range, never on where the fit is later
// evaluated.
func Fit2D(y, x []float64, z *field.Field, order int, policy EdgePolicy, coverY, coverX [2]float64) (*Spline2D, error) {
	if z.Rows != len(y) || z.Cols != len(x) {
		return nil, fmt.Errorf("spline: field shape %dx%d does not match coordinates %dx%d",
			z.Rows, z.Cols, len(y), len(x))
	}
	switch order {
	case 1, 2, 3:
	default:
		return nil, fmt.Errorf("spline: unsupported order %d (want 1..3)", order)
	}
	if err := checkIncreasing(y); err != nil {
		return nil, fmt.Errorf("spline: y axis: %w", err)
	}
	if err := checkIncreasing(x); err != nil {
		return nil, fmt.Errorf("spline: x axis: %w", err)
	}
	if policy == PadEdges {
		y, x, z = padToCover(y, x, z, coverY, coverX)
	}
	return &Spline2D{y: y, x: x, z: z, order: order}, nil
}

// Eval evaluates the fitted spline at the Cartesian product of (yNew, xNew).
// The result has shape len(yNew) x len(xNew).
func (s *Spline2D) Eval(yNew, xNew []float64) (*field.Field, error) {
	if len(yNew) == 0 || len(xNew) == 0 {
		return nil, fmt.Errorf("spline: empty target coordinates")
	}

	// Pass 1: rows of z evaluated at xNew.
	mid := field.New(len(s.y), len(xNew))
	for r := 0; r < s.z.Rows; r++ {
		sp, err := fit1D(s.x, s.z.Row(r), s.order)
		if err != nil {
			return nil, err
		}
		row := mid.Row(r)
		for j, xv := range xNew {
			row[j] = sp.eval(xv)
		}
	}

	// Pass 2: columns of the intermediate evaluated at yNew.
	out := field.New(len(yNew), len(xNew))
	col := make([]float64, len(s.y))
	for j := range xNew {
		col = mid.Col(j, col)
		sp, err := fit1D(s.y, col, s.order)
		if err != nil {
			return nil, err
		}
		for i, yv := range yNew {
			out.Set(i, j, sp.eval(yv))
		}
	}
	return out, nil
}

// Resample is the one-shot convenience form: fit over (y, x) and evaluate
// at (yNew, xNew), with the PadEdges cover range derived from the targets.
func Resample(y, x []float64, z *field.Field, yNew, xNew []float64, order int, policy EdgePolicy) (*field.Field, error) {
	if len(yNew) == 0 || len(xNew) == 0 {
		return nil, fmt.Errorf("spline: empty target coordinates")
	}
	coverY := [2]float64{floats.Min(yNew), floats.Max(yNew)}
	coverX := [2]float64{floats.Min(xNew), floats.Max(xNew)}
	s, err := Fit2D(y, x, z, order, policy, coverY, coverX)
	if err != nil {
		return nil, err
	}
	return s.Eval(yNew, xNew)
}

func checkIncreasing(v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("empty coordinate vector")
	}
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return fmt.Errorf("coordinates must be strictly increasing (index %d)", i)
		}
	}
	return nil
}

// padToCover extends the coordinate vectors so the fitted range covers the
// requested ranges, replicating edge rows/columns of z. Both ends of an
// axis are padded together so the extension stays symmetric.
func padToCover(y, x []float64, z *field.Field, coverY, coverX [2]float64) ([]float64, []float64, *field.Field) {
	padY := coverY[0] < y[0] || coverY[1] > y[len(y)-1]
	padX := coverX[0] < x[0] || coverX[1] > x[len(x)-1]
	if !padY && !padX {
		return y, x, z
	}

	y2 := padAxis(y, coverY[0], coverY[1], padY)
	x2 := padAxis(x, coverX[0], coverX[1], padX)
	padTop := (len(y2) - len(y)) / 2 // same count at each end
	padLeft := (len(x2) - len(x)) / 2

	z2 := field.New(len(y2), len(x2))
	for r := 0; r < len(y2); r++ {
		src := z.Row(clampInt(r-padTop, 0, z.Rows-1))
		dst := z2.Row(r)
		for c := 0; c < len(x2); c++ {
			dst[c] = src[clampInt(c-padLeft, 0, z.Cols-1)]
		}
	}
	return y2, x2, z2
}

// padAxis adds one knot beyond each end of v, far enough to cover
// [needMin, needMax]. Padding is symmetric: either both ends get a knot or
// neither does.
func padAxis(v []float64, needMin, needMax float64, pad bool) []float64 {
	if !pad {
		return v
	}
	lo := v[0] - 1
	if needMin < lo {
		lo = needMin
	}
	hi := v[len(v)-1] + 1
	if needMax > hi {
		hi = needMax
	}
	out := make([]float64, 0, len(v)+2)
	out = append(out, lo)
	out = append(out, v...)
	return append(out, hi)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// spline1D is a fitted one-dimensional spline.
type spline1D struct {
	x     []float64
	y     []float64
	m     []float64 // second derivatives at knots (cubic only)
	cubic bool
}

// fit1D fits a 1-D spline of the given order. Orders 2 and 3 produce a
// natural cubic; short inputs degrade gracefully (2 points -> linear,
// 1 point -> constant).
func fit1D(x, y []float64, order int) (*spline1D, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("spline: %d knots vs %d values", n, len(y))
	}
	if n == 0 {
		return nil, fmt.Errorf("spline: no knots")
	}
	s := &spline1D{x: x, y: y}
	if order < 2 || n < 3 {
		return s, nil
	}
	s.cubic = true
	s.m = make([]float64, n)
	if err := solveNaturalCubic(x, y, s.m); err != nil {
		return nil, err
	}
	return s, nil
}

// solveNaturalCubic fills m with the knot second derivatives of the natural
// cubic spline through (x, y). The interior tridiagonal system is solved
// with gonum's Tridiag; the natural boundary condition fixes m[0] and
// m[n-1] at zero.
func solveNaturalCubic(x, y, m []float64) error {
	n := len(x)
	in := n - 2 // interior knot count, >= 1 here
	d := make([]float64, in)
	b := make([]float64, in)
	var dl, du []float64
	if in > 1 {
		dl = make([]float64, in-1)
		du = make([]float64, in-1)
	}
	for i := 1; i <= in; i++ {
		h0 := x[i] - x[i-1]
		h1 := x[i+1] - x[i]
		d[i-1] = 2 * (h0 + h1)
		if i > 1 {
			dl[i-2] = h0
		}
		if i < in {
			du[i-1] = h1
		}
		b[i-1] = 6 * ((y[i+1]-y[i])/h1 - (y[i]-y[i-1])/h0)
	}

	a := mat.NewTridiag(in, dl, d, du)
	var sol mat.VecDense
	if err := a.SolveVecTo(&sol, false, mat.NewVecDense(in, b)); err != nil {
		return fmt.Errorf("spline: tridiagonal solve: %w", err)
	}
	m[0], m[n-1] = 0, 0
	for i := 0; i < in; i++ {
		m[i+1] = sol.AtVec(i)
	}
	return nil
}

// eval evaluates the spline at t. Outside the knot range the end segment's
// polynomial is continued (linear for order 1, cubic for order 3).
func (s *spline1D) eval(t float64) float64 {
	n := len(s.x)
	if n == 1 {
		return s.y[0]
	}
	// Segment index: the last knot <= t, clamped so out-of-range t uses the
	// end segment.
	i := sort.SearchFloat64s(s.x, t) - 1
	i = clampInt(i, 0, n-2)

	h := s.x[i+1] - s.x[i]
	if !s.cubic {
		w := (t - s.x[i]) / h
		return s.y[i] + w*(s.y[i+1]-s.y[i])
	}
	a := (s.x[i+1] - t) / h
	b := (t - s.x[i]) / h
	return a*s.y[i] + b*s.y[i+1] +
		((a*a*a-a)*s.m[i]+(b*b*b-b)*s.m[i+1])*h*h/6
}
