package correlate

import "math"

// signalToNoise scores the distinctiveness of the correlation peak at
// (pr, pc) with value peak, per the configured method.
func signalToNoise(corr []float64, n, pr, pc int, peak float64, p Params) float64 {
	switch p.SNR {
	case Peak2Peak:
		second := secondPeak(corr, n, pr, pc, p.SNRMaskWidth)
		if second <= 0 {
			// No competing peak above the noise floor: report a large
			// finite score rather than dividing by zero.
			return math.MaxFloat64
		}
		return peak / second
	case Peak2Mean:
		var sum float64
		for _, v := range corr {
			sum += math.Abs(v)
		}
		mean := sum / float64(len(corr))
		if mean == 0 {
			return 0
		}
		return peak / mean
	default:
		return math.NaN()
	}
}

// secondPeak finds the highest correlation value outside the square of
// half-width mask centered (with wraparound) on the primary peak.
func secondPeak(corr []float64, n, pr, pc, mask int) float64 {
	if mask < 1 {
		mask = 1
	}
	best := math.Inf(-1)
	for r := 0; r < n; r++ {
		dr := wrapSigned(float64(r-pr), n)
		for c := 0; c < n; c++ {
			dc := wrapSigned(float64(c-pc), n)
			if math.Abs(dr) <= float64(mask) && math.Abs(dc) <= float64(mask) {
				continue
			}
			if v := corr[r*n+c]; v > best {
				best = v
			}
		}
	}
	if math.IsInf(best, -1) {
		return 0
	}
	return best
}
