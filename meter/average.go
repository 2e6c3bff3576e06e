package meter

import "math"

// AverageValueMeter tracks a running mean, typically of per-utterance losses.
// The zero value is ready to use.
type AverageValueMeter struct {
	sum float64
	n   int
}

// Add folds one value into the mean.
func (m *AverageValueMeter) Add(v float64) {
	m.sum += v
	m.n++
}

// Value returns the current mean, or NaN when nothing was added.
func (m *AverageValueMeter) Value() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}

// Count returns how many values were added.
func (m *AverageValueMeter) Count() int {
	return m.n
}

// Reset clears the meter.
func (m *AverageValueMeter) Reset() {
	*m = AverageValueMeter{}
}
