package correlate

import "gonum.org/v1/gonum/dsp/fourier"

// fft2 performs in-place style 2-D complex FFTs over row-major buffers
// using gonum's FFTPACK-derived transforms. One fft2 holds the per-size
// plans and scratch for a single goroutine; it is not safe for concurrent
// use.
type fft2 struct {
	rows, cols int
	rowPlan    *fourier.CmplxFFT
	colPlan    *fourier.CmplxFFT
	rowBuf     []complex128
	colBuf     []complex128
	colOut     []complex128
}

func newFFT2(rows, cols int) *fft2 {
	return &fft2{
		rows:    rows,
		cols:    cols,
		rowPlan: fourier.NewCmplxFFT(cols),
		colPlan: fourier.NewCmplxFFT(rows),
		rowBuf:  make([]complex128, cols),
		colBuf:  make([]complex128, rows),
		colOut:  make([]complex128, rows),
	}
}

// forward replaces data (rows x cols, row-major) with its 2-D Fourier
// coefficients.
func (t *fft2) forward(data []complex128) {
	for r := 0; r < t.rows; r++ {
		row := data[r*t.cols : (r+1)*t.cols]
		copy(t.rowBuf, row)
		t.rowPlan.Coefficients(row, t.rowBuf)
	}
	for c := 0; c < t.cols; c++ {
		for r := 0; r < t.rows; r++ {
			t.colBuf[r] = data[r*t.cols+c]
		}
		t.colPlan.Coefficients(t.colOut, t.colBuf)
		for r := 0; r < t.rows; r++ {
			data[r*t.cols+c] = t.colOut[r]
		}
	}
}

// inverse replaces coefficients with the spatial sequence, including the
// 1/(rows*cols) normalization gonum's unnormalized transforms leave to the
// caller.
func (t *fft2) inverse(data []complex128) {
	for r := 0; r < t.rows; r++ {
		row := data[r*t.cols : (r+1)*t.cols]
		copy(t.rowBuf, row)
		t.rowPlan.Sequence(row, t.rowBuf)
	}
	scale := complex(1/float64(t.rows*t.cols), 0)
	for c := 0; c < t.cols; c++ {
		for r := 0; r < t.rows; r++ {
			t.colBuf[r] = data[r*t.cols+c]
		}
		t.colPlan.Sequence(t.colOut, t.colBuf)
		for r := 0; r < t.rows; r++ {
			data[r*t.cols+c] = t.colOut[r] * scale
		}
	}
}

// crossCorrelate computes the circular cross-correlation of b against a:
// corr = IFFT2(FFT2(b) * conj(FFT2(a))). The peak of the result sits at the
// displacement of b's content relative to a's, modulo the transform size.
// a and b are consumed as scratch.
func (t *fft2) crossCorrelate(a, b []complex128, corr []float64) {
	t.forward(a)
	t.forward(b)
	for i := range b {
		ar, ai := real(a[i]), imag(a[i])
		br, bi := real(b[i]), imag(b[i])
		// b * conj(a)
		b[i] = complex(br*ar+bi*ai, bi*ar-br*ai)
	}
	t.inverse(b)
	for i := range corr {
		corr[i] = real(b[i])
	}
}
