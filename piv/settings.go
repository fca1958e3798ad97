package piv

import (
	"fmt"

	"github.com/banshee-data/flowfield/correlate"
	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/validate"
)

// ROI restricts the analysis to a rectangular frame region. Bounds are
// half-open pixel ranges, end exclusive.
type ROI struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

// Settings configures one engine run. The zero value is not usable; start
// from DefaultSettings and override.
type Settings struct {
	// WindowSizes and Overlaps are the per-pass schedules, pixels. Only
	// the first NumIterations entries of each are used.
	WindowSizes   []int
	Overlaps      []int
	NumIterations int

	// SearchAreaSizeFirstPass enlarges the correlation search area on the
	// first pass only, to tolerate large initial displacements. Zero means
	// WindowSizes[0] (no enlargement). Later passes always correlate at
	// the window size, since deformation has removed the bulk motion.
	SearchAreaSizeFirstPass int

	// Correlation knobs, passed through to the Correlator.
	SubpixelMethod        correlate.Subpixel
	CorrelationMethod     correlate.Method
	NormalizedCorrelation bool
	SignalToNoiseMethod   correlate.SNRMethod
	SignalToNoiseMask     int

	// ValidationEnabledFirstPass runs the validation criteria on the
	// first pass result. Later passes always validate.
	ValidationEnabledFirstPass bool

	// Validation carries the criteria thresholds (bounds, std, median,
	// snr floor).
	Validation validate.Config

	// Outlier replacement.
	FilterMethod        validate.FilterMethod
	FilterMaxIterations int
	FilterKernelSize    int

	// ReplaceVectors opts single-pass runs into outlier replacement.
	// Multi-pass runs always repair intermediate passes.
	ReplaceVectors bool

	// Between-pass field smoothing.
	SmoothnEnabled  bool
	SmoothnStrength float64

	// InterpolationOrder is the spline order for resampling displacement
	// fields between grids (1..3; 2 resolves to 3, natural cubic).
	InterpolationOrder int

	// ImageDeformationOrder is the pixel resampling order used when
	// warping frame B (0 nearest, 1 bilinear, 3 cubic).
	ImageDeformationOrder int

	// StaticMask excludes frame pixels from the analysis, same shape as
	// the frames (before ROI cropping). Nil means no mask.
	StaticMask *field.Mask

	// ROI crops both frames (and the mask) before processing. Nil means
	// the full frame.
	ROI *ROI

	// InvertIntensity inverts each frame against its own maximum, for
	// recordings with dark particles on a bright background.
	InvertIntensity bool

	// DT is the frame interval in seconds and ScalingFactor the image
	// scale in pixels per meter. Both only matter to unit conversion at
	// export time; the engine itself works in pixels per interval.
	DT            float64
	ScalingFactor float64
}

// DefaultSettings mirrors the common two-pass analysis configuration.
func DefaultSettings() Settings {
	return Settings{
		WindowSizes:   []int{64, 32},
		Overlaps:      []int{32, 16},
		NumIterations: 2,

		SubpixelMethod:        correlate.Gaussian,
		CorrelationMethod:     correlate.Circular,
		NormalizedCorrelation: true,
		SignalToNoiseMethod:   correlate.Peak2Peak,
		SignalToNoiseMask:     2,

		ValidationEnabledFirstPass: true,
		Validation: validate.Config{
			GlobalStd:    true,
			StdThreshold: 8,

			LocalMedian:     true,
			MedianThreshold: 3,
			MedianKernel:    1,
		},

		FilterMethod:        validate.LocalMean,
		FilterMaxIterations: 4,
		FilterKernelSize:    2,

		SmoothnStrength: 0.8,

		InterpolationOrder:    3,
		ImageDeformationOrder: 1,

		DT:            1,
		ScalingFactor: 1,
	}
}

// Validate rejects configurations that cannot produce a run. Frame-size
// dependent checks (window vs frame dimension) happen later, in BuildGrid.
func (s *Settings) Validate() error {
	if s.NumIterations < 1 {
		return fmt.Errorf("%w: numIterations %d", ErrInvalidParameter, s.NumIterations)
	}
	if len(s.WindowSizes) < s.NumIterations || len(s.Overlaps) < s.NumIterations {
		return fmt.Errorf("%w: %d iterations need %d window sizes and overlaps (have %d, %d)",
			ErrInvalidParameter, s.NumIterations, s.NumIterations, len(s.WindowSizes), len(s.Overlaps))
	}
	for i := 0; i < s.NumIterations; i++ {
		w, o := s.WindowSizes[i], s.Overlaps[i]
		if w <= 0 {
			return fmt.Errorf("%w: pass %d window size %d", ErrInvalidParameter, i+1, w)
		}
		if o < 0 || o >= w {
			return fmt.Errorf("%w: pass %d overlap %d for window %d", ErrInvalidParameter, i+1, o, w)
		}
	}
	if s.SearchAreaSizeFirstPass != 0 && s.SearchAreaSizeFirstPass < s.WindowSizes[0] {
		return fmt.Errorf("%w: first-pass search area %d smaller than window %d",
			ErrInvalidParameter, s.SearchAreaSizeFirstPass, s.WindowSizes[0])
	}
	if s.InterpolationOrder < 1 || s.InterpolationOrder > 3 {
		return fmt.Errorf("%w: interpolation order %d", ErrInvalidParameter, s.InterpolationOrder)
	}
	switch s.ImageDeformationOrder {
	case 0, 1, 3:
	default:
		return fmt.Errorf("%w: image deformation order %d", ErrInvalidParameter, s.ImageDeformationOrder)
	}
	if s.SmoothnEnabled && s.SmoothnStrength <= 0 {
		return fmt.Errorf("%w: smoothing strength %v", ErrInvalidParameter, s.SmoothnStrength)
	}
	if s.ROI != nil {
		r := s.ROI
		if r.RowStart < 0 || r.ColStart < 0 || r.RowEnd <= r.RowStart || r.ColEnd <= r.ColStart {
			return fmt.Errorf("%w: roi rows [%d,%d) cols [%d,%d)",
				ErrInvalidParameter, r.RowStart, r.RowEnd, r.ColStart, r.ColEnd)
		}
	}
	return nil
}

// fieldOrder resolves the configured spline order to one the resampler
// implements. Quadratic requests round up to the cubic fit.
func (s *Settings) fieldOrder() int {
	if s.InterpolationOrder == 2 {
		return 3
	}
	return s.InterpolationOrder
}

// searchArea returns the effective first-pass search area size.
func (s *Settings) searchArea() int {
	if s.SearchAreaSizeFirstPass == 0 {
		return s.WindowSizes[0]
	}
	return s.SearchAreaSizeFirstPass
}
