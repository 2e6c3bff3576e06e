package mathutil

import (
	"math"
	"testing"
)

func TestLogAdd(t *testing.T) {
	// log(exp(log(2)) + exp(log(3))) = log(5)
	a := math.Log(2)
	b := math.Log(3)
	got := LogAdd(a, b)
	want := math.Log(5)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogAdd(log(2), log(3)) = %f, want %f", got, want)
	}
}

func TestLogAddWithLogZero(t *testing.T) {
	a := math.Log(5)
	if got := LogAdd(LogZero, a); math.Abs(got-a) > 1e-10 {
		t.Errorf("LogAdd(LogZero, %f) = %f, want %f", a, got, a)
	}
	if got := LogAdd(a, LogZero); math.Abs(got-a) > 1e-10 {
		t.Errorf("LogAdd(%f, LogZero) = %f, want %f", a, got, a)
	}
}

func TestLogSumExp(t *testing.T) {
	// log(1 + 2 + 3) = log(6)
	xs := []float64{math.Log(1), math.Log(2), math.Log(3)}
	got := LogSumExp(xs)
	want := math.Log(6)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogSumExp = %f, want %f", got, want)
	}
}

func TestLogSumExpSkipsLogZero(t *testing.T) {
	xs := []float64{LogZero, math.Log(4), LogZero}
	got := LogSumExp(xs)
	want := math.Log(4)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogSumExp = %f, want %f", got, want)
	}
	if got := LogSumExp([]float64{LogZero, LogZero}); got != LogZero {
		t.Errorf("LogSumExp(all LogZero) = %f, want LogZero", got)
	}
	if math.IsNaN(LogSumExp(nil)) {
		t.Error("LogSumExp(nil) must not be NaN")
	}
}

func TestLogSumExpLargeInputs(t *testing.T) {
	// 1000 + log(2): naive exp would overflow
	xs := []float64{1000, 1000}
	got := LogSumExp(xs)
	want := 1000 + math.Log(2)
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("LogSumExp([1000 1000]) = %f, want %f", got, want)
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		name    string
		xs      []float64
		wantIdx int
	}{
		{"simple", []float64{-3, -1, -2}, 1},
		{"first_element", []float64{5, 1, 2}, 0},
		{"tie_lowest_index", []float64{1, 3, 3, 2}, 1},
		{"single", []float64{-7}, 0},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := ArgMax(tt.xs); got != tt.wantIdx {
				t.Errorf("ArgMax() index = %d, want %d", got, tt.wantIdx)
			}
		})
	}
}
