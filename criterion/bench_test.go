package criterion

import (
	"math/rand"
	"testing"

	"github.com/ieee0824/seqcrit-go/lattice"
)

func buildBenchLattice(T, N, K int) (*lattice.Emissions, []int) {
	rng := rand.New(rand.NewSource(42))
	emit, _ := lattice.NewEmissions(T, N)
	for t := 0; t < T; t++ {
		for n := 0; n < N; n++ {
			emit.Set(t, n, -rng.Float64()*8)
		}
	}
	target := make([]int, K)
	for i := range target {
		target[i] = rng.Intn(N)
	}
	return emit, target
}

func BenchmarkForward(b *testing.B) {
	emit, target := buildBenchLattice(500, 32, 80)
	tr, _ := lattice.NewTransitions(32)
	c := NewForceAlignCriterion(32, tr, ScaleTargetLen)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Forward(emit, target); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkViterbiPath(b *testing.B) {
	emit, target := buildBenchLattice(500, 32, 80)
	tr, _ := lattice.NewTransitions(32)
	c := NewForceAlignCriterion(32, tr, ScaleNone)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.ViterbiPath(emit, target); err != nil {
			b.Fatal(err)
		}
	}
}
