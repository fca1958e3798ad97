// Package piv computes dense displacement fields between two frames of a
// seeded flow by iterative, grid-refining cross-correlation with window
// deformation.
//
// Each pass builds an interrogation grid at the scheduled window size and
// overlap, correlates the frame pair per window, and validates and repairs
// the resulting vectors. Refinement passes first resample the previous
// field onto the finer grid, warp frame B back toward frame A with it, and
// correlate only the residual motion, accumulating corrections until the
// smallest window size is reached.
//
// The Engine owns the pass sequencing; correlation, deformation, smoothing,
// validation and repair are pluggable collaborators with working defaults
// from the correlate, warp and validate packages.
package piv
