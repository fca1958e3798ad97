package field

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFieldIndexing(t *testing.T) {
	f := New(3, 4)
	f.Set(2, 1, 7.5)
	if got := f.At(2, 1); got != 7.5 {
		t.Errorf("At(2,1) = %v, want 7.5", got)
	}
	if got := f.Data[2*4+1]; got != 7.5 {
		t.Errorf("flat layout: Data[9] = %v, want 7.5", got)
	}
}

func TestFromSliceValidatesLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched slice length")
		}
	}()
	FromSlice(2, 3, []float64{1, 2, 3})
}

func TestFlipRows(t *testing.T) {
	f := FromSlice(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	f.FlipRows()
	want := []float64{5, 6, 3, 4, 1, 2}
	if diff := cmp.Diff(want, f.Data); diff != "" {
		t.Errorf("FlipRows mismatch (-want +got):\n%s", diff)
	}

	// Round trip restores the original.
	f.FlipRows()
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5, 6}, f.Data); diff != "" {
		t.Errorf("double FlipRows should be identity (-want +got):\n%s", diff)
	}
}

func TestAddAndNegate(t *testing.T) {
	f := FromSlice(2, 2, []float64{1, 2, 3, 4})
	g := FromSlice(2, 2, []float64{10, 20, 30, 40})
	f.Add(g)
	if diff := cmp.Diff([]float64{11, 22, 33, 44}, f.Data); diff != "" {
		t.Errorf("Add mismatch (-want +got):\n%s", diff)
	}
	f.Negate()
	if f.At(1, 1) != -44 {
		t.Errorf("Negate: got %v, want -44", f.At(1, 1))
	}
}

func TestColExtraction(t *testing.T) {
	f := FromSlice(3, 3, []float64{
		0, 1, 2,
		3, 4, 5,
		6, 7, 8,
	})
	col := f.Col(1, nil)
	if diff := cmp.Diff([]float64{1, 4, 7}, col); diff != "" {
		t.Errorf("Col(1) mismatch (-want +got):\n%s", diff)
	}
}

func TestMaskOrCountAll(t *testing.T) {
	m := NewMask(2, 2)
	n := NewMask(2, 2)
	m.Set(0, 0, true)
	n.Set(1, 1, true)
	m.Or(n)
	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}
	if m.All() {
		t.Error("All should be false with 2/4 set")
	}
	m.Set(0, 1, true)
	m.Set(1, 0, true)
	if !m.All() {
		t.Error("All should be true with every cell set")
	}
}

func TestMaskAllEmpty(t *testing.T) {
	if NewMask(0, 0).All() {
		t.Error("empty mask must not report all-true")
	}
}
