package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/piv"
)

func TestLoadFramePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 2, color.Gray{Y: 200})

	path := filepath.Join(t.TempDir(), "frame.png")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, img))
	require.NoError(t, fh.Close())

	f, err := LoadFrame(path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Rows)
	assert.Equal(t, 4, f.Cols)
	assert.Zero(t, f.At(0, 0))
	// 8-bit 200 scales to 16-bit 200*257.
	assert.InDelta(t, 200*257, f.At(2, 1), 1e-9)
}

func TestConform(t *testing.T) {
	a := field.New(4, 4)
	b := field.New(6, 3)
	for i := range b.Data {
		b.Data[i] = float64(i + 1)
	}

	_, got := Conform(a, b)
	assert.Equal(t, 4, got.Rows)
	assert.Equal(t, 4, got.Cols)
	assert.Equal(t, b.At(0, 0), got.At(0, 0))
	assert.Equal(t, b.At(3, 2), got.At(3, 2))
	assert.Zero(t, got.At(0, 3)) // padded column

	same := field.New(4, 4)
	_, untouched := Conform(a, same)
	assert.Same(t, same, untouched)
}

func TestTextRoundTrip(t *testing.T) {
	res := &piv.Result{
		X: field.FromSlice(2, 3, []float64{16, 32, 48, 16, 32, 48}),
		Y: field.FromSlice(2, 3, []float64{32, 32, 32, 16, 16, 16}),
		U: field.FromSlice(2, 3, []float64{1.5, 2.25, -0.75, 0, 3.125, -4.5}),
		V: field.FromSlice(2, 3, []float64{-1, 0.5, 0, 2, -2.25, 1}),
		Flags:    field.NewMask(2, 3),
		GridMask: field.NewMask(2, 3),
	}
	res.Flags.Set(0, 2, true)
	res.GridMask.Set(1, 0, true)

	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, SaveText(path, res))

	got, err := LoadText(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.U.Rows)
	assert.Equal(t, 3, got.U.Cols)
	assert.Equal(t, res.U.Data, got.U.Data)
	assert.Equal(t, res.V.Data, got.V.Data)
	assert.Equal(t, res.X.Data, got.X.Data)
	assert.True(t, got.Flags.At(0, 2))
	assert.True(t, got.GridMask.At(1, 0))
	assert.Equal(t, 1, got.Flags.Count())
}

func TestLoadTextRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte("# x y u v flags mask\n1 2 3\n"), 0o644))
	_, err := LoadText(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("# header only\n"), 0o644))
	_, err = LoadText(path)
	assert.Error(t, err)
}
