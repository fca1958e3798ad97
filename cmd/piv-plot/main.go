// Command piv-plot renders a text-column result file as a vector-field
// plot.
package main

import (
	"flag"
	"image/color"
	"log"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/flowfield/internal/imageio"
	"github.com/banshee-data/flowfield/piv"
)

var (
	inPath  = flag.String("in", "", "Result file written by the piv command")
	outPath = flag.String("out", "field.png", "Output image (png, svg, pdf)")
	arrow   = flag.Float64("scale", 0, "Arrow length per pixel of displacement (0 = auto)")
	title   = flag.String("title", "", "Plot title")
	size    = flag.Float64("size", 8, "Plot size in inches")
)

func main() {
	flag.Parse()
	if *inPath == "" {
		log.Fatal("-in result file is required")
	}

	res, err := imageio.LoadText(*inPath)
	if err != nil {
		log.Fatalf("failed to load result: %v", err)
	}

	p := plot.New()
	p.Title.Text = *title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	scale := *arrow
	if scale <= 0 {
		scale = autoScale(res)
	}

	valid, flagged, err := vectorLines(res, scale)
	if err != nil {
		log.Fatalf("failed to build plot: %v", err)
	}
	for _, l := range valid {
		p.Add(l)
	}
	for _, l := range flagged {
		p.Add(l)
	}

	if err := p.Save(vg.Length(*size)*vg.Inch, vg.Length(*size)*vg.Inch, *outPath); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("[piv-plot] wrote %s (%d vectors, %d flagged, scale %.2f)",
		*outPath, res.U.Rows*res.U.Cols, res.Flags.Count(), scale)
}

// autoScale sizes the largest arrow to about half the grid spacing.
func autoScale(res *piv.Result) float64 {
	maxMag := 0.0
	for i := range res.U.Data {
		mag := math.Hypot(res.U.Data[i], res.V.Data[i])
		if mag > maxMag {
			maxMag = mag
		}
	}
	if maxMag == 0 {
		return 1
	}
	spacing := 16.0
	if res.X.Cols > 1 {
		spacing = math.Abs(res.X.At(0, 1) - res.X.At(0, 0))
	}
	return spacing / (2 * maxMag)
}

// vectorLines builds one line segment per grid cell, from the window center
// along the scaled displacement. Flagged cells are drawn in red, masked
// cells are skipped.
func vectorLines(res *piv.Result, scale float64) (valid, flagged []*plotter.Line, err error) {
	for r := 0; r < res.U.Rows; r++ {
		for c := 0; c < res.U.Cols; c++ {
			if res.GridMask.At(r, c) {
				continue
			}
			x, y := res.X.At(r, c), res.Y.At(r, c)
			pts := plotter.XYs{
				{X: x, Y: y},
				{X: x + res.U.At(r, c)*scale, Y: y + res.V.At(r, c)*scale},
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, nil, err
			}
			line.Width = vg.Points(1)
			if res.Flags.At(r, c) {
				line.Color = color.RGBA{R: 200, A: 255}
				line.Dashes = []vg.Length{vg.Points(2), vg.Points(1)}
				flagged = append(flagged, line)
			} else {
				line.Color = color.RGBA{B: 160, A: 255}
				valid = append(valid, line)
			}
		}
	}
	return valid, flagged, nil
}
