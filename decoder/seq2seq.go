// Package decoder realizes decoding policies for autoregressive sequence
// models: teacher-forced arg-max, free-running greedy decode, and pruned beam
// search. The model itself stays external; it is reached through a per-step
// function returning the distribution over the next label.
package decoder

import (
	"errors"
	"fmt"

	"github.com/ieee0824/seqcrit-go/internal/mathutil"
)

// ErrInvalidBeamWidth indicates a beam width below 1.
var ErrInvalidBeamWidth = errors.New("decoder: beam width must be at least 1")

// State is the decoder-internal state threaded through steps (attention
// context, hidden activations). Clone must return a copy sharing no mutable
// data with the receiver; beam forks rely on it.
type State interface {
	Clone() State
}

// StepFunc produces the log-domain distribution over the next label given the
// previously emitted label and the current state. prev is -1 on the first
// step. The returned state replaces the one passed in.
type StepFunc func(prev int, st State) (dist []float64, next State, err error)

// Config holds decoding parameters.
type Config struct {
	EOS       int // end-of-sequence label index
	MaxSteps  int // hard ceiling on emitted labels; <= 0 uses DefaultMaxSteps
	BeamWidth int // hypotheses retained per beam search step
}

// DefaultMaxSteps caps decoding when Config.MaxSteps is unset.
const DefaultMaxSteps = 256

// DefaultConfig returns reasonable default parameters. EOS follows the usual
// convention of the reserved index 0; override to match the dictionary.
func DefaultConfig() Config {
	return Config{
		EOS:       0,
		MaxSteps:  DefaultMaxSteps,
		BeamWidth: 1,
	}
}

func (c Config) maxSteps() int {
	if c.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}

// Result holds one decoded sequence.
type Result struct {
	Labels []int   // emitted labels, EOS excluded
	Score  float64 // cumulative log probability, including the EOS step if taken
	Final  State   // decoder state after the last step taken
}

func cloneState(st State) State {
	if st == nil {
		return nil
	}
	return st.Clone()
}

// TeacherForced runs the model over the full target length, feeding the TRUE
// previous label at every position regardless of what the model predicted.
// It returns the raw arg-max label per position; the sequence has exactly
// len(target) entries and is never truncated here.
func TeacherForced(step StepFunc, st State, target []int) ([]int, error) {
	st = cloneState(st)
	out := make([]int, len(target))
	prev := -1
	for i := range target {
		dist, next, err := step(prev, st)
		if err != nil {
			return nil, fmt.Errorf("teacher-forced step %d: %w", i, err)
		}
		if len(dist) == 0 {
			return nil, fmt.Errorf("teacher-forced step %d: empty distribution", i)
		}
		out[i], _ = mathutil.ArgMax(dist)
		prev = target[i]
		st = next
	}
	return out, nil
}

// Greedy decodes free-running: each step feeds back the model's own previous
// prediction and takes the arg-max. Decoding stops at the first EOS (excluded
// from the output) or at the step ceiling, whichever comes first; hitting the
// ceiling returns the sequence un-truncated.
func Greedy(step StepFunc, st State, cfg Config) (*Result, error) {
	st = cloneState(st)
	res := &Result{}
	prev := -1
	for i := 0; i < cfg.maxSteps(); i++ {
		dist, next, err := step(prev, st)
		if err != nil {
			return nil, fmt.Errorf("greedy step %d: %w", i, err)
		}
		if len(dist) == 0 {
			return nil, fmt.Errorf("greedy step %d: empty distribution", i)
		}
		v, lp := mathutil.ArgMax(dist)
		res.Score += lp
		st = next
		if v == cfg.EOS {
			break
		}
		res.Labels = append(res.Labels, v)
		prev = v
	}
	res.Final = st
	return res, nil
}

// matrixState indexes into a table of precomputed distributions.
type matrixState struct {
	t int
}

func (s *matrixState) Clone() State {
	c := *s
	return &c
}

// MatrixStep returns a StepFunc (and its initial state) that replays
// precomputed per-step output distributions, ignoring the previously emitted
// label. Useful for offline analysis of dumped decoder outputs and for tests.
// Stepping past the last row is an error; cap MaxSteps at len(rows).
func MatrixStep(rows [][]float64) (StepFunc, State) {
	step := func(prev int, st State) ([]float64, State, error) {
		ms, ok := st.(*matrixState)
		if !ok {
			return nil, nil, fmt.Errorf("decoder: MatrixStep needs its own state, got %T", st)
		}
		if ms.t >= len(rows) {
			return nil, nil, fmt.Errorf("decoder: step %d beyond %d precomputed distributions", ms.t, len(rows))
		}
		return rows[ms.t], &matrixState{t: ms.t + 1}, nil
	}
	return step, &matrixState{}
}
