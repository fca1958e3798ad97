// Package validate flags implausible displacement vectors and repairs them
// by local interpolation, between passes of the refinement engine.
//
// Criteria are evaluated independently and OR-ed: a vector failing any one
// of the enabled checks is marked invalid. Repair fills flagged cells from
// their valid neighborhood with a bounded number of relaxation iterations;
// cells that cannot be reached stay flagged rather than being silently
// accepted.
package validate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flowfield/field"
)

// Config enables and parameterizes the validation criteria for one pass.
type Config struct {
	// Global displacement bounds, pixels.
	GlobalBounds           bool
	MinU, MaxU, MinV, MaxV float64

	// Global deviation from the field mean, in standard deviations.
	GlobalStd    bool
	StdThreshold float64

	// Local median consistency: |value - median(neighbors)| limit in
	// pixels, over a square kernel of the given radius.
	LocalMedian     bool
	MedianThreshold float64
	MedianKernel    int

	// Signal-to-noise floor.
	SNRFloor     bool
	SNRThreshold float64
}

// Displacement validates (u, v) with the optional snr field and returns the
// validity flags (true = invalid). Cells set in exclude are outside the
// analysis (image-masked) and are neither flagged nor used as neighbors or
// statistics sources. snr may be nil when no scoring ran; exclude may be
// nil.
func Displacement(u, v, snr *field.Field, exclude *field.Mask, cfg Config) *field.Mask {
	flags := field.NewMask(u.Rows, u.Cols)

	if cfg.GlobalBounds {
		for i, uv := range u.Data {
			if excluded(exclude, i) {
				continue
			}
			if uv < cfg.MinU || uv > cfg.MaxU || v.Data[i] < cfg.MinV || v.Data[i] > cfg.MaxV {
				flags.Data[i] = true
			}
		}
	}

	if cfg.GlobalStd {
		flagGlobalStd(u, exclude, cfg.StdThreshold, flags)
		flagGlobalStd(v, exclude, cfg.StdThreshold, flags)
	}

	if cfg.LocalMedian {
		flagLocalMedian(u, exclude, cfg.MedianThreshold, cfg.MedianKernel, flags)
		flagLocalMedian(v, exclude, cfg.MedianThreshold, cfg.MedianKernel, flags)
	}

	if cfg.SNRFloor && snr != nil {
		for i, s := range snr.Data {
			if excluded(exclude, i) {
				continue
			}
			// NaN is the "scoring disabled" sentinel, not a failure.
			if !math.IsNaN(s) && s < cfg.SNRThreshold {
				flags.Data[i] = true
			}
		}
	}

	return flags
}

func excluded(exclude *field.Mask, i int) bool {
	return exclude != nil && exclude.Data[i]
}

func flagGlobalStd(f *field.Field, exclude *field.Mask, k float64, flags *field.Mask) {
	vals := make([]float64, 0, len(f.Data))
	for i, v := range f.Data {
		if !excluded(exclude, i) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return
	}
	mean, std := stat.MeanStdDev(vals, nil)
	if std == 0 {
		return
	}
	limit := k * std
	for i, v := range f.Data {
		if excluded(exclude, i) {
			continue
		}
		if math.Abs(v-mean) > limit {
			flags.Data[i] = true
		}
	}
}

func flagLocalMedian(f *field.Field, exclude *field.Mask, limit float64, kernel int, flags *field.Mask) {
	if kernel < 1 {
		kernel = 1
	}
	neigh := make([]float64, 0, (2*kernel+1)*(2*kernel+1))
	for r := 0; r < f.Rows; r++ {
		for c := 0; c < f.Cols; c++ {
			i := r*f.Cols + c
			if excluded(exclude, i) {
				continue
			}
			neigh = neigh[:0]
			for dr := -kernel; dr <= kernel; dr++ {
				for dc := -kernel; dc <= kernel; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= f.Rows || nc < 0 || nc >= f.Cols {
						continue
					}
					ni := nr*f.Cols + nc
					if excluded(exclude, ni) {
						continue
					}
					neigh = append(neigh, f.Data[ni])
				}
			}
			if len(neigh) == 0 {
				continue
			}
			sort.Float64s(neigh)
			med := stat.Quantile(0.5, stat.Empirical, neigh, nil)
			if math.Abs(f.Data[i]-med) > limit {
				flags.Data[i] = true
			}
		}
	}
}
