// Package units converts pixel displacements per frame interval into
// physical velocities, and between speed units.
package units

import "fmt"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// Scale converts displacements to velocities. ScalingFactor is the image
// scale in pixels per meter, DT the frame interval in seconds.
type Scale struct {
	ScalingFactor float64
	DT            float64
}

// NewScale validates and builds a Scale.
func NewScale(scalingFactor, dt float64) (Scale, error) {
	if scalingFactor <= 0 {
		return Scale{}, fmt.Errorf("scaling factor must be positive, got %v", scalingFactor)
	}
	if dt <= 0 {
		return Scale{}, fmt.Errorf("frame interval must be positive, got %v", dt)
	}
	return Scale{ScalingFactor: scalingFactor, DT: dt}, nil
}

// Velocity converts a displacement in pixels per frame interval to meters
// per second.
func (s Scale) Velocity(displacementPx float64) float64 {
	return displacementPx / s.ScalingFactor / s.DT
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694 // m/s to mph
	case KMPH, KPH:
		return speedMPS * 3.6 // m/s to km/h
	case MPS:
		return speedMPS // no conversion needed
	default:
		return speedMPS // default to m/s if unknown unit
	}
}
