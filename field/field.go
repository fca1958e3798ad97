// Package field provides the dense 2-D arrays shared by the PIV engine:
// Field for numeric data (frames, displacement components, signal-to-noise
// scores) and Mask for per-cell boolean state (image masks, validity flags).
//
// Data is stored as a flat row-major slice so fields can be reshaped,
// copied and iterated without pointer chasing. Rows index the vertical
// (image row) axis, Cols the horizontal axis.
package field

import "fmt"

// Field is a dense row-major 2-D array of float64 samples.
type Field struct {
	Rows int
	Cols int
	Data []float64 // len = Rows * Cols
}

// New returns a zero-initialised Field of the given shape.
func New(rows, cols int) *Field {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("field: negative shape %dx%d", rows, cols))
	}
	return &Field{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// FromSlice wraps a flat row-major slice as a Field. The slice is not
// copied; len(data) must equal rows*cols.
func FromSlice(rows, cols int, data []float64) *Field {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("field: slice length %d does not match shape %dx%d", len(data), rows, cols))
	}
	return &Field{Rows: rows, Cols: cols, Data: data}
}

// At returns the sample at (row, col).
func (f *Field) At(r, c int) float64 { return f.Data[r*f.Cols+c] }

// Set stores a sample at (row, col).
func (f *Field) Set(r, c int, v float64) { f.Data[r*f.Cols+c] = v }

// Fill sets every sample to v and returns f.
func (f *Field) Fill(v float64) *Field {
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	out := New(f.Rows, f.Cols)
	copy(out.Data, f.Data)
	return out
}

// SameShape reports whether f and g have identical dimensions.
func (f *Field) SameShape(g *Field) bool {
	return f.Rows == g.Rows && f.Cols == g.Cols
}

// Row returns the r-th row as a subslice of the backing array.
func (f *Field) Row(r int) []float64 {
	return f.Data[r*f.Cols : (r+1)*f.Cols]
}

// Col copies the c-th column into dst, allocating if dst is nil or short.
func (f *Field) Col(c int, dst []float64) []float64 {
	if cap(dst) < f.Rows {
		dst = make([]float64, f.Rows)
	}
	dst = dst[:f.Rows]
	for r := 0; r < f.Rows; r++ {
		dst[r] = f.Data[r*f.Cols+c]
	}
	return dst
}

// Add accumulates g into f element-wise. Shapes must match.
func (f *Field) Add(g *Field) *Field {
	if !f.SameShape(g) {
		panic(fmt.Sprintf("field: shape mismatch %dx%d vs %dx%d", f.Rows, f.Cols, g.Rows, g.Cols))
	}
	for i := range f.Data {
		f.Data[i] += g.Data[i]
	}
	return f
}

// Scale multiplies every sample by s and returns f.
func (f *Field) Scale(s float64) *Field {
	for i := range f.Data {
		f.Data[i] *= s
	}
	return f
}

// Negate flips the sign of every sample and returns f.
func (f *Field) Negate() *Field { return f.Scale(-1) }

// FlipRows reverses the row order in place and returns f. Used when
// converting from image-row-major (y down) to physical (y up) orientation.
func (f *Field) FlipRows() *Field {
	for top, bot := 0, f.Rows-1; top < bot; top, bot = top+1, bot-1 {
		tr, br := f.Row(top), f.Row(bot)
		for c := range tr {
			tr[c], br[c] = br[c], tr[c]
		}
	}
	return f
}

// Mask is a dense row-major 2-D array of booleans.
type Mask struct {
	Rows int
	Cols int
	Data []bool // len = Rows * Cols
}

// NewMask returns an all-false Mask of the given shape.
func NewMask(rows, cols int) *Mask {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("field: negative shape %dx%d", rows, cols))
	}
	return &Mask{Rows: rows, Cols: cols, Data: make([]bool, rows*cols)}
}

// At returns the flag at (row, col).
func (m *Mask) At(r, c int) bool { return m.Data[r*m.Cols+c] }

// Set stores a flag at (row, col).
func (m *Mask) Set(r, c int, v bool) { m.Data[r*m.Cols+c] = v }

// Clone returns a deep copy of m.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}

// Or merges n into m element-wise (logical OR) and returns m.
func (m *Mask) Or(n *Mask) *Mask {
	if m.Rows != n.Rows || m.Cols != n.Cols {
		panic(fmt.Sprintf("field: shape mismatch %dx%d vs %dx%d", m.Rows, m.Cols, n.Rows, n.Cols))
	}
	for i := range m.Data {
		m.Data[i] = m.Data[i] || n.Data[i]
	}
	return m
}

// Count returns the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// All reports whether every cell is true. An empty mask is not "all true".
func (m *Mask) All() bool {
	if len(m.Data) == 0 {
		return false
	}
	for _, v := range m.Data {
		if !v {
			return false
		}
	}
	return true
}

// FlipRows reverses the row order in place and returns m.
func (m *Mask) FlipRows() *Mask {
	for top, bot := 0, m.Rows-1; top < bot; top, bot = top+1, bot-1 {
		for c := 0; c < m.Cols; c++ {
			ti, bi := top*m.Cols+c, bot*m.Cols+c
			m.Data[ti], m.Data[bi] = m.Data[bi], m.Data[ti]
		}
	}
	return m
}
