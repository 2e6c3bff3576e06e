package decoder

import (
	"math/rand"
	"testing"
)

// benchRows builds step distributions over vocab classes that never spike
// EOS, so decoding always runs to the ceiling.
func benchRows(steps, vocab int) [][]float64 {
	rng := rand.New(rand.NewSource(7))
	rows := make([][]float64, steps)
	for t := range rows {
		row := make([]float64, vocab)
		row[0] = -20 // EOS stays unlikely
		for v := 1; v < vocab; v++ {
			row[v] = -rng.Float64() * 6
		}
		rows[t] = row
	}
	return rows
}

func BenchmarkGreedy(b *testing.B) {
	rows := benchRows(100, 64)
	cfg := Config{EOS: 0, MaxSteps: 100}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		step, st := MatrixStep(rows)
		if _, err := Greedy(step, st, cfg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBeamSearch(b *testing.B) {
	rows := benchRows(100, 64)
	cfg := Config{EOS: 0, MaxSteps: 100, BeamWidth: 8}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		step, st := MatrixStep(rows)
		if _, err := BeamSearch(step, st, cfg); err != nil {
			b.Fatal(err)
		}
	}
}
