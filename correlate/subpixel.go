package correlate

import "math"

// subpixelOffset refines the integer peak (pr, pc) of an n x n correlation
// plane to sub-pixel precision using the three-point estimator selected by
// method. Neighbor samples wrap modulo n, matching the periodicity of the
// FFT correlation. Returns the fractional offsets along rows and columns,
// each in (-1, 1).
func subpixelOffset(corr []float64, n, pr, pc int, method Subpixel) (rowFrac, colFrac float64) {
	c0 := corr[pr*n+pc]
	up := corr[wrapIdx(pr-1, n)*n+pc]
	down := corr[wrapIdx(pr+1, n)*n+pc]
	left := corr[pr*n+wrapIdx(pc-1, n)]
	right := corr[pr*n+wrapIdx(pc+1, n)]

	rowFrac = threePoint(up, c0, down, method)
	colFrac = threePoint(left, c0, right, method)
	return rowFrac, colFrac
}

// threePoint estimates the peak offset from three samples cm, c0, cp at
// positions -1, 0, +1. A zero offset is returned when the estimator is
// undefined (flat or non-positive neighborhood).
func threePoint(cm, c0, cp float64, method Subpixel) float64 {
	switch method {
	case Gaussian:
		// Gaussian fit needs strictly positive samples; fall back to
		// the centroid otherwise, as the reference estimators do for
		// correlation planes that dip negative.
		if cm > 0 && c0 > 0 && cp > 0 {
			den := 2*math.Log(cm) - 4*math.Log(c0) + 2*math.Log(cp)
			if den != 0 {
				return (math.Log(cm) - math.Log(cp)) / den
			}
			return 0
		}
		return centroid3(cm, c0, cp)
	case Parabolic:
		den := 2*cm - 4*c0 + 2*cp
		if den != 0 {
			return (cm - cp) / den
		}
		return 0
	default:
		return centroid3(cm, c0, cp)
	}
}

func centroid3(cm, c0, cp float64) float64 {
	sum := cm + c0 + cp
	if sum == 0 {
		return 0
	}
	return (cp - cm) / sum
}

func wrapIdx(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
