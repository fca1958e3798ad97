package piv

import "errors"

var (
	// ErrInvalidParameter marks a malformed window/overlap/grid
	// configuration, rejected before any pass runs.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrShapeMismatch marks frames or masks that are not conformable.
	// Crop/pad to a common shape is the caller's job; the engine treats a
	// mismatch as fatal for that pair.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrValidationExhausted is returned when a pass flags every single
	// cell invalid, which signals a pathological input (a fully masked or
	// featureless frame). The wrapping error names the offending pass.
	ErrValidationExhausted = errors.New("validation flagged entire field")
)
