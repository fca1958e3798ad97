package validate

import (
	"math"

	"github.com/banshee-data/flowfield/field"
)

// FilterMethod selects the repair interpolation kernel.
type FilterMethod int

const (
	// LocalMean replaces a flagged cell with the plain mean of its valid
	// neighbors.
	LocalMean FilterMethod = iota
	// Distance weights the valid neighbors by inverse distance.
	Distance
)

// RepairStats reports what a ReplaceOutliers run achieved.
type RepairStats struct {
	// Iterations actually performed.
	Iterations int
	// Repaired is the number of cells filled with interpolated values.
	Repaired int
	// Remaining counts cells still unresolved at the iteration cap. They
	// keep their flags and original values; the caller decides whether
	// that is fatal (it is not, for the engine).
	Remaining int
}

// ReplaceOutliers fills flagged cells of u and v in place from their valid
// neighborhood, iterating so repaired cells can seed their neighbors on the
// next sweep. Cells set in exclude never participate, in either direction.
// flags is left untouched: it remains the record of what was measured
// versus interpolated.
func ReplaceOutliers(u, v *field.Field, flags, exclude *field.Mask, method FilterMethod, maxIter, kernel int) RepairStats {
	if kernel < 1 {
		kernel = 1
	}
	if maxIter < 1 {
		maxIter = 1
	}

	// valid marks cells usable as interpolation sources.
	valid := field.NewMask(u.Rows, u.Cols)
	pending := 0
	for i := range valid.Data {
		bad := flags.Data[i] || excluded(exclude, i)
		valid.Data[i] = !bad
		if flags.Data[i] && !excluded(exclude, i) {
			pending++
		}
	}

	stats := RepairStats{Remaining: pending}
	for iter := 0; iter < maxIter && stats.Remaining > 0; iter++ {
		stats.Iterations = iter + 1
		repairedThisSweep := fillSweep(u, v, valid, exclude, method, kernel)
		if repairedThisSweep == 0 {
			break // isolated cells with no valid neighbors anywhere
		}
		stats.Repaired += repairedThisSweep
		stats.Remaining -= repairedThisSweep
	}
	return stats
}

// fillSweep performs one relaxation sweep, filling every currently
// repairable cell from the valid set as it stood at the start of the sweep.
// Returns the number of cells repaired.
func fillSweep(u, v *field.Field, valid, exclude *field.Mask, method FilterMethod, kernel int) int {
	rows, cols := u.Rows, u.Cols
	snapshot := valid.Clone()
	repaired := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			if snapshot.Data[i] || excluded(exclude, i) {
				continue
			}
			var sumU, sumV, wSum float64
			for dr := -kernel; dr <= kernel; dr++ {
				for dc := -kernel; dc <= kernel; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					ni := nr*cols + nc
					if !snapshot.Data[ni] {
						continue
					}
					w := 1.0
					if method == Distance {
						w = 1 / math.Hypot(float64(dr), float64(dc))
					}
					sumU += w * u.Data[ni]
					sumV += w * v.Data[ni]
					wSum += w
				}
			}
			if wSum == 0 {
				continue
			}
			u.Data[i] = sumU / wSum
			v.Data[i] = sumV / wSum
			valid.Data[i] = true
			repaired++
		}
	}
	return repaired
}
