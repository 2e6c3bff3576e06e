// Package criterion implements lattice-based training criteria for sequence
// models: a forward dynamic program that scores all monotonic alignments of a
// target against per-frame emissions, and its Viterbi counterpart that
// recovers the single best frame-to-label alignment.
package criterion

import (
	"errors"
	"math"

	"github.com/ieee0824/seqcrit-go/lattice"
)

// ErrInvalidAlignment indicates that no monotonic alignment of the target to
// the emission frames exists, or that the lattice produced a non-finite
// terminal score.
var ErrInvalidAlignment = errors.New("criterion: invalid alignment")

// SequenceCriterion is the calling contract shared by lattice-based criteria.
// Variants differ in their recurrence and transition shape, not in contract.
type SequenceCriterion interface {
	// Forward returns the (scaled) negative log-likelihood of the target
	// under the criterion.
	Forward(emit *lattice.Emissions, target []int) (float64, error)

	// ViterbiPath returns the best frame-to-label alignment, one label per
	// frame (length = emit.T).
	ViterbiPath(emit *lattice.Emissions, target []int) ([]int, error)
}

// ScaleMode selects how a criterion's loss is normalized. It is a pure
// normalization choice and never changes the alignment search.
type ScaleMode int

const (
	// ScaleNone leaves the loss unnormalized.
	ScaleNone ScaleMode = iota
	// ScaleTargetLen divides by the target length.
	ScaleTargetLen
	// ScaleTargetLenSqrt divides by sqrt of the target length.
	ScaleTargetLenSqrt
	// ScaleInputLen divides by the number of frames.
	ScaleInputLen
	// ScaleBatch divides by the configured batch size.
	ScaleBatch
)

func (m ScaleMode) apply(loss float64, T, K, batch int) float64 {
	switch m {
	case ScaleTargetLen:
		return loss / float64(K)
	case ScaleTargetLenSqrt:
		return loss / math.Sqrt(float64(K))
	case ScaleInputLen:
		return loss / float64(T)
	case ScaleBatch:
		if batch < 1 {
			batch = 1
		}
		return loss / float64(batch)
	default:
		return loss
	}
}
