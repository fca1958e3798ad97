// Package correlate scores candidate displacements per interrogation
// window with FFT cross-correlation. It is the default correlation engine
// behind the multi-pass refinement loop: circular or linear correlation,
// plain or normalized, with sub-pixel peak fitting and per-window
// signal-to-noise scoring.
//
// Displacements are reported in image coordinates: u positive toward
// increasing columns, v positive toward increasing rows (downward). Axis
// conversions belong to the caller.
package correlate

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/flowfield/field"
)

// Method selects the correlation periodicity handling.
type Method int

const (
	// Circular correlates at the window size; displacements wrap modulo
	// the window, which is fine once the bulk motion has been deformed
	// away or stays under half a window.
	Circular Method = iota
	// Linear zero-pads to twice the window size so the correlation is
	// aperiodic over the full displacement range.
	Linear
)

// Subpixel selects the three-point sub-pixel peak estimator.
type Subpixel int

const (
	// Gaussian fits a Gaussian through the peak and its neighbors; the
	// usual choice for particle images. Falls back to centroid where a
	// neighbor is non-positive.
	Gaussian Subpixel = iota
	// Centroid is the weighted average of the three points.
	Centroid
	// Parabolic fits a parabola through the three points.
	Parabolic
)

// SNRMethod selects the per-window signal-to-noise score.
type SNRMethod int

const (
	// SNRNone disables scoring; the result carries NaN sentinels.
	SNRNone SNRMethod = iota
	// Peak2Peak is the ratio of the primary correlation peak to the
	// highest peak outside a masked square around it.
	Peak2Peak
	// Peak2Mean is the ratio of the primary peak to the mean absolute
	// correlation.
	Peak2Mean
)

// Params is the immutable per-call configuration of one correlation pass.
type Params struct {
	WindowSize int
	Overlap    int
	// SearchAreaSize widens the window taken from frame B to tolerate
	// large displacements on the first pass. Zero or WindowSize disables
	// the widening.
	SearchAreaSize int
	Method         Method
	// Normalized divides by the window intensity variances, turning the
	// score into a correlation coefficient. Window means are always
	// removed first either way.
	Normalized   bool
	Subpixel     Subpixel
	SNR          SNRMethod
	SNRMaskWidth int // half-width of the exclusion square for Peak2Peak
}

// Result holds per-window displacement estimates on the interrogation
// grid, row-major.
type Result struct {
	Rows, Cols int
	U, V       []float64 // pixels; v positive downward (image rows)
	SNR        []float64 // NaN when scoring is disabled
	// Degenerate marks windows whose correlation could not be scored
	// (for example zero intensity variance). Their u, v are zero and the
	// caller should treat them as invalid rather than aborting the pass.
	Degenerate []bool
}

// FieldShape returns the interrogation grid shape for a frame of the given
// size: floor((dim - window) / (window - overlap)) + 1 per axis.
func FieldShape(frameRows, frameCols, window, overlap int) (rows, cols int) {
	step := window - overlap
	return (frameRows-window)/step + 1, (frameCols-window)/step + 1
}

// FFT is the default Correlator implementation.
type FFT struct {
	// Workers bounds the number of concurrent window-row workers.
	// Zero means GOMAXPROCS.
	Workers int
}

// Correlate scores every interrogation window of the equal-shape frames
// a and b and returns the flat per-window results in grid row-major order.
func (f FFT) Correlate(a, b *field.Field, p Params) (*Result, error) {
	if !a.SameShape(b) {
		return nil, fmt.Errorf("correlate: frame shapes differ: %dx%d vs %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols)
	}
	if p.WindowSize <= 0 || p.Overlap < 0 || p.Overlap >= p.WindowSize {
		return nil, fmt.Errorf("correlate: invalid window %d / overlap %d", p.WindowSize, p.Overlap)
	}
	if p.WindowSize > a.Rows || p.WindowSize > a.Cols {
		return nil, fmt.Errorf("correlate: window %d exceeds frame %dx%d", p.WindowSize, a.Rows, a.Cols)
	}
	search := p.SearchAreaSize
	if search == 0 {
		search = p.WindowSize
	}
	if search < p.WindowSize {
		return nil, fmt.Errorf("correlate: search area %d smaller than window %d", search, p.WindowSize)
	}

	gRows, gCols := FieldShape(a.Rows, a.Cols, p.WindowSize, p.Overlap)
	if gRows <= 0 || gCols <= 0 {
		return nil, fmt.Errorf("correlate: no windows fit a %dx%d frame", a.Rows, a.Cols)
	}

	res := &Result{
		Rows: gRows, Cols: gCols,
		U:          make([]float64, gRows*gCols),
		V:          make([]float64, gRows*gCols),
		SNR:        make([]float64, gRows*gCols),
		Degenerate: make([]bool, gRows*gCols),
	}
	if p.SNR == SNRNone {
		for i := range res.SNR {
			res.SNR[i] = math.NaN()
		}
	}

	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// One worker per grid row: each owns its FFT plans and scratch.
	var g errgroup.Group
	g.SetLimit(workers)
	for gr := 0; gr < gRows; gr++ {
		g.Go(func() error {
			w := newWindowWorker(p, search)
			step := p.WindowSize - p.Overlap
			r0 := gr * step
			for gc := 0; gc < gCols; gc++ {
				c0 := gc * step
				idx := gr*gCols + gc
				w.run(a, b, r0, c0, res, idx, p)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// windowWorker carries the FFT plans and buffers for one goroutine.
type windowWorker struct {
	window int
	search int
	margin int // (search - window) / 2
	n      int // transform edge length
	fft    *fft2
	bufA   []complex128
	bufB   []complex128
	corr   []float64
}

func newWindowWorker(p Params, search int) *windowWorker {
	n := search
	if p.Method == Linear {
		n = 2 * search
	}
	return &windowWorker{
		window: p.WindowSize,
		search: search,
		margin: (search - p.WindowSize) / 2,
		n:      n,
		fft:    newFFT2(n, n),
		bufA:   make([]complex128, n*n),
		bufB:   make([]complex128, n*n),
		corr:   make([]float64, n*n),
	}
}

// run scores the window whose top-left corner in frame A is (r0, c0) and
// writes the estimate into res at idx.
func (w *windowWorker) run(a, b *field.Field, r0, c0 int, res *Result, idx int, p Params) {
	_, stdA := loadWindow(w.bufA, w.n, a, r0, c0, w.window, w.window)
	// The B window is widened by the search margin on each side and
	// zero-filled where it hangs past the frame.
	_, stdB := loadWindow(w.bufB, w.n, b, r0-w.margin, c0-w.margin, w.search, w.search)

	if stdA < degenerateStd || stdB < degenerateStd {
		res.Degenerate[idx] = true
		if p.SNR != SNRNone {
			res.SNR[idx] = 0
		}
		return
	}

	w.fft.crossCorrelate(w.bufA, w.bufB, w.corr)
	if p.Normalized {
		norm := stdA * stdB * float64(w.window*w.window)
		for i := range w.corr {
			w.corr[i] /= norm
		}
	}

	pr, pc, peak := peakIndex(w.corr, w.n)
	if peak <= 0 {
		res.Degenerate[idx] = true
		if p.SNR != SNRNone {
			res.SNR[idx] = 0
		}
		return
	}

	frRow, frCol := subpixelOffset(w.corr, w.n, pr, pc, p.Subpixel)

	// Undo the search margin shift and wrap into the signed range.
	res.U[idx] = wrapSigned(float64(pc)+frCol-float64(w.margin), w.n)
	res.V[idx] = wrapSigned(float64(pr)+frRow-float64(w.margin), w.n)
	if p.SNR != SNRNone {
		res.SNR[idx] = signalToNoise(w.corr, w.n, pr, pc, peak, p)
	}
}

// degenerateStd is the intensity standard deviation below which a window
// carries no usable texture.
const degenerateStd = 1e-12

// loadWindow copies a rows x cols region with top-left (r0, c0) into the
// top-left corner of an n x n complex buffer, zero-filling the remainder
// and any samples outside the frame. The window mean is removed so the
// correlation has no DC pedestal. Returns the window mean and standard
// deviation.
func loadWindow(dst []complex128, n int, f *field.Field, r0, c0, rows, cols int) (mean, std float64) {
	var sum, sumSq float64
	count := 0
	for r := 0; r < rows; r++ {
		fr := r0 + r
		if fr < 0 || fr >= f.Rows {
			continue
		}
		for c := 0; c < cols; c++ {
			fc := c0 + c
			if fc < 0 || fc >= f.Cols {
				continue
			}
			v := f.At(fr, fc)
			sum += v
			sumSq += v * v
			count++
		}
	}
	if count > 0 {
		mean = sum / float64(count)
		variance := sumSq/float64(count) - mean*mean
		if variance > 0 {
			std = math.Sqrt(variance)
		}
	}

	for i := range dst {
		dst[i] = 0
	}
	for r := 0; r < rows; r++ {
		fr := r0 + r
		if fr < 0 || fr >= f.Rows {
			continue
		}
		for c := 0; c < cols; c++ {
			fc := c0 + c
			if fc < 0 || fc >= f.Cols {
				continue
			}
			dst[r*n+c] = complex(f.At(fr, fc)-mean, 0)
		}
	}
	return mean, std
}

// peakIndex locates the maximum of the n x n correlation plane.
func peakIndex(corr []float64, n int) (pr, pc int, peak float64) {
	peak = math.Inf(-1)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if v := corr[r*n+c]; v > peak {
				peak, pr, pc = v, r, c
			}
		}
	}
	return pr, pc, peak
}

// wrapSigned maps a displacement in [0, n) transform space into the signed
// range [-n/2, n/2).
func wrapSigned(d float64, n int) float64 {
	half := float64(n) / 2
	for d >= half {
		d -= float64(n)
	}
	for d < -half {
		d += float64(n)
	}
	return d
}
