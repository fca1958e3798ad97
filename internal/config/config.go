// Package config loads analysis configuration from a JSON file and maps it
// onto piv.Settings. Fields omitted from the JSON keep the engine defaults,
// so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/flowfield/correlate"
	"github.com/banshee-data/flowfield/piv"
	"github.com/banshee-data/flowfield/validate"
)

// AnalysisConfig is the JSON schema for a run configuration. Pointer fields
// distinguish "omitted" from zero values.
type AnalysisConfig struct {
	// Pass schedule
	WindowSizes   []int `json:"window_sizes,omitempty"`
	Overlaps      []int `json:"overlaps,omitempty"`
	NumIterations *int  `json:"num_iterations,omitempty"`

	// Correlation
	SearchAreaSizeFirstPass *int    `json:"search_area_size_first_pass,omitempty"`
	SubpixelMethod          *string `json:"subpixel_method,omitempty"`    // gaussian | centroid | parabolic
	CorrelationMethod       *string `json:"correlation_method,omitempty"` // circular | linear
	NormalizedCorrelation   *bool   `json:"normalized_correlation,omitempty"`
	SignalToNoiseMethod     *string `json:"sig2noise_method,omitempty"` // peak2peak | peak2mean | none
	SignalToNoiseMask       *int    `json:"sig2noise_mask,omitempty"`

	// Validation
	ValidationFirstPass *bool `json:"validation_first_pass,omitempty"`

	MinU *float64 `json:"min_u_displacement,omitempty"`
	MaxU *float64 `json:"max_u_displacement,omitempty"`
	MinV *float64 `json:"min_v_displacement,omitempty"`
	MaxV *float64 `json:"max_v_displacement,omitempty"`

	StdThreshold    *float64 `json:"std_threshold,omitempty"`
	MedianThreshold *float64 `json:"median_threshold,omitempty"`
	MedianKernel    *int     `json:"median_size,omitempty"`
	SNRThreshold    *float64 `json:"sig2noise_threshold,omitempty"`

	// Outlier replacement
	FilterMethod        *string `json:"filter_method,omitempty"` // localmean | distance
	FilterMaxIterations *int    `json:"max_filter_iteration,omitempty"`
	FilterKernelSize    *int    `json:"filter_kernel_size,omitempty"`
	ReplaceVectors      *bool   `json:"replace_vectors,omitempty"`

	// Smoothing
	Smoothn         *bool    `json:"smoothn,omitempty"`
	SmoothnStrength *float64 `json:"smoothn_p,omitempty"`

	// Interpolation / deformation
	InterpolationOrder    *int `json:"interpolation_order,omitempty"`
	ImageDeformationOrder *int `json:"deformation_order,omitempty"`

	// Frame handling
	ROI             []int `json:"roi,omitempty"` // rowStart, rowEnd, colStart, colEnd
	InvertIntensity *bool `json:"invert,omitempty"`

	// Physical units
	DT            *float64 `json:"dt,omitempty"`
	ScalingFactor *float64 `json:"scaling_factor,omitempty"`
}

// Load reads and parses a JSON analysis config.
func Load(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// Settings maps the config onto engine settings, starting from the
// defaults. The result is validated the same way a hand-built Settings
// would be, at engine construction.
func (c *AnalysisConfig) Settings() (piv.Settings, error) {
	s := piv.DefaultSettings()

	if len(c.WindowSizes) > 0 {
		s.WindowSizes = c.WindowSizes
	}
	if len(c.Overlaps) > 0 {
		s.Overlaps = c.Overlaps
	}
	if c.NumIterations != nil {
		s.NumIterations = *c.NumIterations
	} else if len(c.WindowSizes) > 0 {
		s.NumIterations = len(c.WindowSizes)
	}
	if c.SearchAreaSizeFirstPass != nil {
		s.SearchAreaSizeFirstPass = *c.SearchAreaSizeFirstPass
	}

	if c.SubpixelMethod != nil {
		switch *c.SubpixelMethod {
		case "gaussian":
			s.SubpixelMethod = correlate.Gaussian
		case "centroid":
			s.SubpixelMethod = correlate.Centroid
		case "parabolic":
			s.SubpixelMethod = correlate.Parabolic
		default:
			return s, fmt.Errorf("unknown subpixel method %q", *c.SubpixelMethod)
		}
	}
	if c.CorrelationMethod != nil {
		switch *c.CorrelationMethod {
		case "circular":
			s.CorrelationMethod = correlate.Circular
		case "linear":
			s.CorrelationMethod = correlate.Linear
		default:
			return s, fmt.Errorf("unknown correlation method %q", *c.CorrelationMethod)
		}
	}
	if c.NormalizedCorrelation != nil {
		s.NormalizedCorrelation = *c.NormalizedCorrelation
	}
	if c.SignalToNoiseMethod != nil {
		switch *c.SignalToNoiseMethod {
		case "peak2peak":
			s.SignalToNoiseMethod = correlate.Peak2Peak
		case "peak2mean":
			s.SignalToNoiseMethod = correlate.Peak2Mean
		case "none":
			s.SignalToNoiseMethod = correlate.SNRNone
		default:
			return s, fmt.Errorf("unknown sig2noise method %q", *c.SignalToNoiseMethod)
		}
	}
	if c.SignalToNoiseMask != nil {
		s.SignalToNoiseMask = *c.SignalToNoiseMask
	}

	if c.ValidationFirstPass != nil {
		s.ValidationEnabledFirstPass = *c.ValidationFirstPass
	}
	if c.MinU != nil || c.MaxU != nil || c.MinV != nil || c.MaxV != nil {
		s.Validation.GlobalBounds = true
		s.Validation.MinU = valueOr(c.MinU, -30)
		s.Validation.MaxU = valueOr(c.MaxU, 30)
		s.Validation.MinV = valueOr(c.MinV, -30)
		s.Validation.MaxV = valueOr(c.MaxV, 30)
	}
	if c.StdThreshold != nil {
		s.Validation.GlobalStd = true
		s.Validation.StdThreshold = *c.StdThreshold
	}
	if c.MedianThreshold != nil {
		s.Validation.LocalMedian = true
		s.Validation.MedianThreshold = *c.MedianThreshold
	}
	if c.MedianKernel != nil {
		s.Validation.MedianKernel = *c.MedianKernel
	}
	if c.SNRThreshold != nil {
		s.Validation.SNRFloor = true
		s.Validation.SNRThreshold = *c.SNRThreshold
	}

	if c.FilterMethod != nil {
		switch *c.FilterMethod {
		case "localmean":
			s.FilterMethod = validate.LocalMean
		case "distance":
			s.FilterMethod = validate.Distance
		default:
			return s, fmt.Errorf("unknown filter method %q", *c.FilterMethod)
		}
	}
	if c.FilterMaxIterations != nil {
		s.FilterMaxIterations = *c.FilterMaxIterations
	}
	if c.FilterKernelSize != nil {
		s.FilterKernelSize = *c.FilterKernelSize
	}
	if c.ReplaceVectors != nil {
		s.ReplaceVectors = *c.ReplaceVectors
	}

	if c.Smoothn != nil {
		s.SmoothnEnabled = *c.Smoothn
	}
	if c.SmoothnStrength != nil {
		s.SmoothnStrength = *c.SmoothnStrength
	}

	if c.InterpolationOrder != nil {
		s.InterpolationOrder = *c.InterpolationOrder
	}
	if c.ImageDeformationOrder != nil {
		s.ImageDeformationOrder = *c.ImageDeformationOrder
	}

	if len(c.ROI) > 0 {
		if len(c.ROI) != 4 {
			return s, fmt.Errorf("roi needs 4 values (rowStart, rowEnd, colStart, colEnd), got %d", len(c.ROI))
		}
		s.ROI = &piv.ROI{RowStart: c.ROI[0], RowEnd: c.ROI[1], ColStart: c.ROI[2], ColEnd: c.ROI[3]}
	}
	if c.InvertIntensity != nil {
		s.InvertIntensity = *c.InvertIntensity
	}

	if c.DT != nil {
		s.DT = *c.DT
	}
	if c.ScalingFactor != nil {
		s.ScalingFactor = *c.ScalingFactor
	}

	return s, s.Validate()
}

func valueOr(p *float64, fallback float64) float64 {
	if p != nil {
		return *p
	}
	return fallback
}
