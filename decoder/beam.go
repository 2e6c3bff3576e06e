package decoder

import (
	"fmt"
	"sort"
)

// hypothesis is one partial sequence in the beam. Labels and state are owned
// exclusively; forks copy both.
type hypothesis struct {
	labels []int
	score  float64
	state  State
	done   bool
}

func (h *hypothesis) last() int {
	if len(h.labels) == 0 {
		return -1
	}
	return h.labels[len(h.labels)-1]
}

// candidate is a scored continuation awaiting pruning. Materializing the
// label copy and the state clone only for survivors keeps expansion cheap.
type candidate struct {
	parent *hypothesis
	label  int // -1 carries a terminated parent forward unchanged
	score  float64
	next   State
}

// BeamSearch decodes with a beam of up to cfg.BeamWidth hypotheses. Every
// non-terminated hypothesis is expanded over the whole vocabulary each step;
// the new beam is the stable top-K by score, so equal scores keep first-seen
// order. A hypothesis that emits EOS is terminated: it is never expanded
// again but keeps competing for its beam slot. Decoding stops when every
// hypothesis has terminated or after cfg.MaxSteps steps; if nothing reached
// EOS by then, the best partial sequence is returned as-is.
func BeamSearch(step StepFunc, st State, cfg Config) (*Result, error) {
	if cfg.BeamWidth < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBeamWidth, cfg.BeamWidth)
	}

	beam := []*hypothesis{{state: cloneState(st)}}
	cands := make([]candidate, 0, cfg.BeamWidth*2)

	for i := 0; i < cfg.maxSteps(); i++ {
		allDone := true
		for _, h := range beam {
			if !h.done {
				allDone = false
				break
			}
		}
		if allDone {
			break
		}

		cands = cands[:0]
		for _, h := range beam {
			if h.done {
				cands = append(cands, candidate{parent: h, label: -1, score: h.score})
				continue
			}
			dist, next, err := step(h.last(), h.state)
			if err != nil {
				return nil, fmt.Errorf("beam step %d: %w", i, err)
			}
			if len(dist) == 0 {
				return nil, fmt.Errorf("beam step %d: empty distribution", i)
			}
			for v, lp := range dist {
				cands = append(cands, candidate{parent: h, label: v, score: h.score + lp, next: next})
			}
		}

		// Stable top-K prune: ties stay in generation order (parent rank,
		// then label index).
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
		if len(cands) > cfg.BeamWidth {
			cands = cands[:cfg.BeamWidth]
		}

		next := make([]*hypothesis, 0, len(cands))
		for _, c := range cands {
			if c.label < 0 {
				next = append(next, c.parent)
				continue
			}
			h := &hypothesis{score: c.score, state: cloneState(c.next)}
			if c.label == cfg.EOS {
				// EOS closes the hypothesis; the label path stays as the
				// parent's (the EOS token is not part of the output).
				h.labels = c.parent.labels
				h.done = true
			} else {
				h.labels = make([]int, len(c.parent.labels)+1)
				copy(h.labels, c.parent.labels)
				h.labels[len(c.parent.labels)] = c.label
			}
			next = append(next, h)
		}
		beam = next
	}

	best := beam[0]
	for _, h := range beam[1:] {
		if h.score > best.score {
			best = h
		}
	}
	return &Result{Labels: best.labels, Score: best.score, Final: best.state}, nil
}
