// Package imageio decodes camera frames into intensity fields and reads and
// writes the text-column result format.
package imageio

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/banshee-data/flowfield/field"
)

// LoadFrame decodes an image file (png, jpeg, tiff or bmp) into a grayscale
// intensity field, rows = height.
func LoadFrame(path string) (*field.Field, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer fh.Close()

	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts any decoded image to a grayscale field. Samples are
// scaled to the 0..65535 range of the 16-bit luma.
func FromImage(img image.Image) *field.Field {
	bounds := img.Bounds()
	out := field.New(bounds.Dy(), bounds.Dx())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000
			out.Set(y-bounds.Min.Y, x-bounds.Min.X, luma)
		}
	}
	return out
}

// Conform crops or zero-pads b to a's shape so the pair can enter the
// engine. a is returned unchanged.
func Conform(a, b *field.Field) (*field.Field, *field.Field) {
	if a.SameShape(b) {
		return a, b
	}
	out := field.New(a.Rows, a.Cols)
	rows := min(a.Rows, b.Rows)
	cols := min(a.Cols, b.Cols)
	for r := 0; r < rows; r++ {
		copy(out.Row(r)[:cols], b.Row(r)[:cols])
	}
	return a, out
}
