package criterion

import (
	"fmt"
	"math"

	"github.com/ieee0824/seqcrit-go/internal/mathutil"
	"github.com/ieee0824/seqcrit-go/lattice"
)

// ForceAlignCriterion scores a known target label sequence against per-frame
// emissions. The forward pass sums (in log space) over every monotonic
// alignment that emits the whole target; the Viterbi pass keeps only the best
// one and can reconstruct it frame by frame.
type ForceAlignCriterion struct {
	N         int                  // number of classes
	Trans     *lattice.Transitions // nil means neutral transitions
	ScaleMode ScaleMode
	BatchSize int // used by ScaleBatch; 0 behaves as 1
}

// NewForceAlignCriterion creates a criterion over N classes with the given
// transition matrix (nil for neutral) and scale mode.
func NewForceAlignCriterion(N int, trans *lattice.Transitions, mode ScaleMode) *ForceAlignCriterion {
	return &ForceAlignCriterion{N: N, Trans: trans, ScaleMode: mode}
}

func (c *ForceAlignCriterion) trans(to, from int) float64 {
	if c.Trans == nil {
		return 0
	}
	return c.Trans.Score(to, from)
}

// checkInputs validates the target against the lattice. A target longer than
// the frame count has no monotonic alignment; labels must index into [0, N).
func (c *ForceAlignCriterion) checkInputs(emit *lattice.Emissions, target []int) error {
	if len(target) == 0 {
		return fmt.Errorf("%w: empty target", ErrInvalidAlignment)
	}
	if len(target) > emit.T {
		return fmt.Errorf("%w: %d labels for %d frames", ErrInvalidAlignment, len(target), emit.T)
	}
	if emit.N != c.N {
		return fmt.Errorf("%w: lattice has %d classes, criterion expects %d", ErrInvalidAlignment, emit.N, c.N)
	}
	for i, l := range target {
		if l < 0 || l >= c.N {
			return fmt.Errorf("%w: label %d at position %d outside [0, %d)", ErrInvalidAlignment, l, i, c.N)
		}
	}
	return nil
}

// Forward computes the scaled negative log-likelihood of the target.
func (c *ForceAlignCriterion) Forward(emit *lattice.Emissions, target []int) (float64, error) {
	loss, _, err := c.Score(emit, target)
	return loss, err
}

// Score computes the scaled loss along with the unnormalized negative
// log-likelihood.
func (c *ForceAlignCriterion) Score(emit *lattice.Emissions, target []int) (loss, unnormalized float64, err error) {
	if err := c.checkInputs(emit, target); err != nil {
		return 0, 0, err
	}
	T, K := emit.T, len(target)

	// alpha[t][k], double-buffered over t. A cell is reachable only if at
	// least k frames precede it and enough frames remain to finish the
	// target: k <= t and K-k <= T-t.
	prev := mathutil.NewVecFill(K, mathutil.LogZero)
	curr := mathutil.NewVecFill(K, mathutil.LogZero)
	prev[0] = emit.At(0, target[0])

	for t := 1; t < T; t++ {
		mathutil.FillVec(curr, mathutil.LogZero)
		for k := 0; k < K; k++ {
			if k > t || K-k > T-t {
				continue
			}
			s := mathutil.LogZero
			if prev[k] > mathutil.LogZero+1 {
				s = prev[k] + c.trans(target[k], target[k])
			}
			if k >= 1 && prev[k-1] > mathutil.LogZero+1 {
				s = mathutil.LogAdd(s, prev[k-1]+c.trans(target[k], target[k-1]))
			}
			if s > mathutil.LogZero+1 {
				curr[k] = s + emit.At(t, target[k])
			}
		}
		prev, curr = curr, prev
	}

	raw := prev[K-1]
	if math.IsNaN(raw) {
		return 0, 0, fmt.Errorf("%w: non-finite terminal score", ErrInvalidAlignment)
	}
	if raw <= mathutil.LogZero+1 {
		return 0, 0, fmt.Errorf("%w: no valid path", ErrInvalidAlignment)
	}
	unnormalized = -raw
	return c.ScaleMode.apply(unnormalized, T, K, c.BatchSize), unnormalized, nil
}

// ViterbiPath returns the best monotonic frame-to-label alignment as one
// label per frame. The path always has exactly emit.T entries.
func (c *ForceAlignCriterion) ViterbiPath(emit *lattice.Emissions, target []int) ([]int, error) {
	path, _, err := c.viterbi(emit, target)
	return path, err
}

// ViterbiScore returns the log score of the best alignment, i.e. the forward
// score under the max semiring.
func (c *ForceAlignCriterion) ViterbiScore(emit *lattice.Emissions, target []int) (float64, error) {
	_, score, err := c.viterbi(emit, target)
	return score, err
}

// viterbi shares the Forward recurrence with max in place of logsumexp and
// records the argmax predecessor of each cell for traceback.
func (c *ForceAlignCriterion) viterbi(emit *lattice.Emissions, target []int) ([]int, float64, error) {
	if err := c.checkInputs(emit, target); err != nil {
		return nil, 0, err
	}
	T, K := emit.T, len(target)

	prev := mathutil.NewVecFill(K, mathutil.LogZero)
	curr := mathutil.NewVecFill(K, mathutil.LogZero)
	prev[0] = emit.At(0, target[0])

	// bp[t][k] = target position occupied at frame t-1 on the best path
	// into (t, k): either k (stay) or k-1 (advance).
	bp := make([][]int32, T)
	for t := range bp {
		bp[t] = make([]int32, K)
	}

	for t := 1; t < T; t++ {
		mathutil.FillVec(curr, mathutil.LogZero)
		for k := 0; k < K; k++ {
			if k > t || K-k > T-t {
				continue
			}
			bestScore := mathutil.LogZero
			bestPrev := int32(k)
			if prev[k] > mathutil.LogZero+1 {
				bestScore = prev[k] + c.trans(target[k], target[k])
			}
			if k >= 1 && prev[k-1] > mathutil.LogZero+1 {
				adv := prev[k-1] + c.trans(target[k], target[k-1])
				if adv > bestScore {
					bestScore = adv
					bestPrev = int32(k - 1)
				}
			}
			if bestScore > mathutil.LogZero+1 {
				curr[k] = bestScore + emit.At(t, target[k])
			}
			bp[t][k] = bestPrev
		}
		prev, curr = curr, prev
	}

	best := prev[K-1]
	if math.IsNaN(best) {
		return nil, 0, fmt.Errorf("%w: non-finite terminal score", ErrInvalidAlignment)
	}
	if best <= mathutil.LogZero+1 {
		return nil, 0, fmt.Errorf("%w: no valid path", ErrInvalidAlignment)
	}

	// Backtrace target positions, then map to labels.
	ks := make([]int, T)
	ks[T-1] = K - 1
	for t := T - 1; t > 0; t-- {
		ks[t-1] = int(bp[t][ks[t]])
	}
	path := make([]int, T)
	for t, k := range ks {
		path[t] = target[k]
	}
	return path, best, nil
}
