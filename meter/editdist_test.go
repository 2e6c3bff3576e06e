package meter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddClassifiesEdits(t *testing.T) {
	// Labels stand in for letters: c=0 a=1 t=2 s=3, h=4 e=5 l=6 o=7.
	tests := []struct {
		name     string
		hyp, ref []int
		wantSub  int
		wantIns  int
		wantDel  int
		wantRate float64
	}{
		{
			name: "cats_vs_cat_one_insertion",
			hyp:  []int{0, 1, 2, 3}, ref: []int{0, 1, 2},
			wantIns: 1, wantRate: 1.0 / 3.0,
		},
		{
			name: "helo_vs_hello_one_deletion",
			hyp:  []int{4, 5, 6, 7}, ref: []int{4, 5, 6, 6, 7},
			wantDel: 1, wantRate: 1.0 / 5.0,
		},
		{
			name: "single_substitution",
			hyp:  []int{0, 3, 2}, ref: []int{0, 1, 2},
			wantSub: 1, wantRate: 1.0 / 3.0,
		},
		{
			name: "empty_hypothesis_all_deletions",
			hyp:  nil, ref: []int{0, 1, 2},
			wantDel: 3, wantRate: 1.0,
		},
		{
			name: "shift_plus_extra_token",
			hyp:  []int{1, 2, 3, 3}, ref: []int{0, 1, 2, 3},
			wantSub: 0, wantIns: 1, wantDel: 1, wantRate: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m EditDistanceMeter
			require.NoError(t, m.Add(tt.hyp, tt.ref))
			got := m.Value()
			assert.Equal(t, tt.wantSub, got.Subs, "substitutions")
			assert.Equal(t, tt.wantIns, got.Ins, "insertions")
			assert.Equal(t, tt.wantDel, got.Dels, "deletions")
			assert.InDelta(t, tt.wantRate, got.ErrorRate, 1e-12)
		})
	}
}

func TestAddIdenticalSequences(t *testing.T) {
	var m EditDistanceMeter
	x := []int{3, 1, 4, 1, 5}
	require.NoError(t, m.Add(x, x))
	got := m.Value()
	assert.Zero(t, got.Subs)
	assert.Zero(t, got.Ins)
	assert.Zero(t, got.Dels)
	assert.Zero(t, got.ErrorRate)
}

func TestDistanceSymmetry(t *testing.T) {
	a := []int{0, 1, 2, 3, 1}
	b := []int{1, 2, 2, 3}
	assert.Equal(t, Distance(a, b), Distance(b, a))
	assert.Equal(t, 0, Distance(a, a))
}

func TestAccumulationAcrossAdds(t *testing.T) {
	var m EditDistanceMeter
	require.NoError(t, m.Add([]int{0, 1, 2, 3}, []int{0, 1, 2})) // 1 ins, ref 3
	require.NoError(t, m.Add([]int{4, 5}, []int{4, 5, 6}))       // 1 del, ref 3
	got := m.Value()
	assert.Equal(t, 1, got.Ins)
	assert.Equal(t, 1, got.Dels)
	assert.Equal(t, 6, got.RefLen)
	assert.InDelta(t, 2.0/6.0, got.ErrorRate, 1e-12)

	m.Reset()
	assert.Zero(t, m.Value().RefLen)
	assert.True(t, math.IsNaN(m.Value().ErrorRate), "rate undefined after reset")
}

func TestEmptyReferenceRejected(t *testing.T) {
	var m EditDistanceMeter
	err := m.Add([]int{1, 2}, nil)
	assert.ErrorIs(t, err, ErrEmptyReference)
	assert.Zero(t, m.Value().RefLen, "failed add must not touch the tallies")
	assert.True(t, math.IsNaN(m.Value().ErrorRate))
}

func TestAddWords(t *testing.T) {
	// Separator label 9. hyp: [1 2 | 3] vs ref: [1 2 | 4]: one word
	// substituted out of two.
	var m EditDistanceMeter
	hyp := []int{1, 2, 9, 3}
	ref := []int{1, 2, 9, 4}
	require.NoError(t, m.AddWords(hyp, ref, 9))
	got := m.Value()
	assert.Equal(t, 1, got.Subs)
	assert.Equal(t, 2, got.RefLen)
	assert.InDelta(t, 0.5, got.ErrorRate, 1e-12)
}

func TestAddWordsSeparatorEdgeCases(t *testing.T) {
	var m EditDistanceMeter

	// Doubled and trailing separators produce no empty words.
	require.NoError(t, m.AddWords([]int{9, 1, 9, 9, 2, 9}, []int{1, 9, 2}, 9))
	assert.Zero(t, m.Value().Subs+m.Value().Ins+m.Value().Dels)

	// All-separator reference has no words at all.
	err := m.AddWords([]int{1}, []int{9, 9}, 9)
	assert.ErrorIs(t, err, ErrEmptyReference)
}

func TestAverageValueMeter(t *testing.T) {
	var m AverageValueMeter
	assert.True(t, math.IsNaN(m.Value()))
	m.Add(2)
	m.Add(4)
	assert.InDelta(t, 3.0, m.Value(), 1e-12)
	assert.Equal(t, 2, m.Count())
	m.Reset()
	assert.True(t, math.IsNaN(m.Value()))
}
