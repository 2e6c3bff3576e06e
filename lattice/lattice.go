// Package lattice holds the dense numeric inputs to sequence criteria and
// decoders: per-frame emission scores and label-to-label transition scores.
// Both are produced upstream (by the acoustic/attention network and the
// training step) and are read-only during scoring and decoding.
package lattice

import (
	"errors"
	"fmt"
)

var (
	// ErrBadShape indicates non-positive frame or class dimensions.
	ErrBadShape = errors.New("lattice: dimensions must be positive")

	// ErrRaggedRows indicates rows of unequal length.
	ErrRaggedRows = errors.New("lattice: rows must have equal length")
)

// Emissions is a T frames x N classes table of log-domain scores stored in a
// single frame-major buffer.
type Emissions struct {
	T, N int
	data []float64
}

// NewEmissions creates a zeroed T x N emission table.
func NewEmissions(T, N int) (*Emissions, error) {
	if T <= 0 || N <= 0 {
		return nil, fmt.Errorf("%w: T=%d N=%d", ErrBadShape, T, N)
	}
	return &Emissions{T: T, N: N, data: make([]float64, T*N)}, nil
}

// EmissionsFromRows copies a row-per-frame score table into an Emissions.
func EmissionsFromRows(rows [][]float64) (*Emissions, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: T=%d", ErrBadShape, len(rows))
	}
	e, err := NewEmissions(len(rows), len(rows[0]))
	if err != nil {
		return nil, err
	}
	for t, row := range rows {
		if len(row) != e.N {
			return nil, fmt.Errorf("%w: row %d has %d classes, want %d", ErrRaggedRows, t, len(row), e.N)
		}
		copy(e.data[t*e.N:(t+1)*e.N], row)
	}
	return e, nil
}

// At returns the score of class n at frame t.
func (e *Emissions) At(t, n int) float64 {
	return e.data[t*e.N+n]
}

// Set writes the score of class n at frame t. Intended for construction;
// callers must not mutate an Emissions once scoring has begun.
func (e *Emissions) Set(t, n int, v float64) {
	e.data[t*e.N+n] = v
}

// Frame returns the N scores of frame t as a view into the backing buffer.
func (e *Emissions) Frame(t int) []float64 {
	return e.data[t*e.N : (t+1)*e.N]
}

// Transitions is an N x N matrix of label-to-label transition scores.
// Score(to, from) is the score of moving into label `to` from label `from`.
// A zero-valued matrix is neutral (all transitions score 0).
type Transitions struct {
	N    int
	data []float64
}

// NewTransitions creates a neutral N x N transition matrix.
func NewTransitions(N int) (*Transitions, error) {
	if N <= 0 {
		return nil, fmt.Errorf("%w: N=%d", ErrBadShape, N)
	}
	return &Transitions{N: N, data: make([]float64, N*N)}, nil
}

// Score returns the transition score into label to from label from.
func (m *Transitions) Score(to, from int) float64 {
	return m.data[to*m.N+from]
}

// Set writes the transition score into label to from label from. Mutation is
// the training step's business; scoring treats the matrix as read-only.
func (m *Transitions) Set(to, from int, v float64) {
	m.data[to*m.N+from] = v
}
