package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a > b {
		if b == LogZero {
			return a
		}
		d := b - a
		if d < -36.0 {
			return a
		}
		return a + math.Log1p(math.Exp(d))
	}
	if a == LogZero {
		return b
	}
	d := a - b
	if d < -36.0 {
		return b
	}
	return b + math.Log1p(math.Exp(d))
}

// LogSumExp returns log(exp(x[0]) + ... + exp(x[n-1])) using max subtraction.
// LogZero terms are skipped; if every term is LogZero the result is LogZero,
// never NaN.
func LogSumExp(xs []float64) float64 {
	maxVal := LogZero
	for _, x := range xs {
		if x > maxVal {
			maxVal = x
		}
	}
	if maxVal == LogZero {
		return LogZero
	}
	sum := 0.0
	for _, x := range xs {
		if x == LogZero {
			continue
		}
		sum += math.Exp(x - maxVal)
	}
	return maxVal + math.Log(sum)
}

// ArgMax returns the index and value of the maximum element. Ties resolve to
// the lowest index. An empty slice yields (-1, LogZero).
func ArgMax(xs []float64) (int, float64) {
	if len(xs) == 0 {
		return -1, LogZero
	}
	idx := 0
	best := xs[0]
	for i := 1; i < len(xs); i++ {
		if xs[i] > best {
			best = xs[i]
			idx = i
		}
	}
	return idx, best
}
