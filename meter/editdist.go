// Package meter accumulates evaluation metrics across utterances: edit
// distance with an insertion/deletion/substitution breakdown, and running
// loss averages.
package meter

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrEmptyReference indicates a scoring call against an empty reference.
// Such utterances have no defined error rate and must be filtered upstream;
// the meter's tallies are left untouched.
var ErrEmptyReference = errors.New("meter: empty reference")

// Stats is one error-rate reading.
type Stats struct {
	ErrorRate float64 // (S+I+D) / reference length; NaN when nothing was added
	Subs      int
	Ins       int
	Dels      int
	RefLen    int
}

// EditDistanceMeter accumulates Levenshtein alignment counts across Add
// calls. The zero value is ready to use.
type EditDistanceMeter struct {
	subs, ins, dels int
	refLen          int
}

// Add meters one hypothesis against its reference and folds the counts into
// the running totals.
func (m *EditDistanceMeter) Add(hyp, ref []int) error {
	if len(ref) == 0 {
		return ErrEmptyReference
	}
	s, i, d := editCounts(hyp, ref)
	m.subs += s
	m.ins += i
	m.dels += d
	m.refLen += len(ref)
	return nil
}

// AddWords splits both sequences on the separator label and meters the
// resulting word tokens with the same algorithm. Empty tokens produced by
// leading, trailing, or doubled separators are dropped.
func (m *EditDistanceMeter) AddWords(hyp, ref []int, sep int) error {
	refWords := wordKeys(ref, sep)
	if len(refWords) == 0 {
		return ErrEmptyReference
	}
	s, i, d := editCounts(wordKeys(hyp, sep), refWords)
	m.subs += s
	m.ins += i
	m.dels += d
	m.refLen += len(refWords)
	return nil
}

// Value recomputes the error rate from the running counters. With no
// reference tokens the rate is NaN; callers must guard before reporting.
func (m *EditDistanceMeter) Value() Stats {
	rate := math.NaN()
	if m.refLen > 0 {
		rate = float64(m.subs+m.ins+m.dels) / float64(m.refLen)
	}
	return Stats{
		ErrorRate: rate,
		Subs:      m.subs,
		Ins:       m.ins,
		Dels:      m.dels,
		RefLen:    m.refLen,
	}
}

// Reset clears all counters.
func (m *EditDistanceMeter) Reset() {
	*m = EditDistanceMeter{}
}

// Distance returns the plain Levenshtein distance between two label
// sequences (unit insertion/deletion/substitution cost).
func Distance(a, b []int) int {
	s, i, d := editCounts(a, b)
	return s + i + d
}

// editCounts fills the full (|hyp|+1)x(|ref|+1) edit table and classifies the
// minimum-cost path by backtracking. When several minimal paths exist the
// tie-break prefers match > substitution > deletion > insertion, so counts
// are deterministic.
func editCounts[T comparable](hyp, ref []T) (subs, ins, dels int) {
	lh, lr := len(hyp), len(ref)

	d := make([][]int, lh+1)
	for i := range d {
		d[i] = make([]int, lr+1)
		d[i][0] = i
	}
	for j := 0; j <= lr; j++ {
		d[0][j] = j
	}
	for i := 1; i <= lh; i++ {
		for j := 1; j <= lr; j++ {
			cost := 1
			if hyp[i-1] == ref[j-1] {
				cost = 0
			}
			best := d[i-1][j-1] + cost
			if del := d[i][j-1] + 1; del < best {
				best = del
			}
			if ins := d[i-1][j] + 1; ins < best {
				best = ins
			}
			d[i][j] = best
		}
	}

	i, j := lh, lr
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && hyp[i-1] == ref[j-1] && d[i][j] == d[i-1][j-1]:
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			subs++
			i--
			j--
		case j > 0 && d[i][j] == d[i][j-1]+1:
			dels++
			j--
		default:
			ins++
			i--
		}
	}
	return subs, ins, dels
}

// wordKeys slices seq at every separator and encodes each word as a
// comparable string key over its label indices.
func wordKeys(seq []int, sep int) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, l := range seq {
		if l == sep {
			flush()
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(l))
	}
	flush()
	return words
}
