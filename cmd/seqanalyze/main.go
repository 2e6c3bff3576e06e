// Command seqanalyze scores and decodes a bundle of dumped utterances:
// per-frame emissions, per-step decoder output distributions, optional
// attention weights, and target labels. It reports beam / greedy /
// teacher-forced error rates and the average criterion loss.
//
// Bundle format (plain text, whitespace separated):
//
//	trans <N>            optional transition matrix, N rows of N scores
//	utt <id>
//	emit <T> <N>         T rows of N emission scores
//	step <U> <N>         optional; emissions are reused when absent
//	attn <U> <F>         optional attention weights, exported with -attndir
//	target <k1> <k2> ...
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	seqcrit "github.com/ieee0824/seqcrit-go"
	"github.com/ieee0824/seqcrit-go/criterion"
	"github.com/ieee0824/seqcrit-go/decoder"
	"github.com/ieee0824/seqcrit-go/lattice"
)

func main() {
	dataPath := flag.String("data", "", "path to utterance bundle file")
	eos := flag.Int("eos", 0, "end-of-sequence label index")
	beam := flag.Int("beam", 1, "beam width (1 = greedy decode only)")
	maxSteps := flag.Int("max-steps", 0, "decode step ceiling (0 = longest step table in the bundle)")
	attnDir := flag.String("attndir", "", "directory for attention dumps")
	view := flag.Bool("view-transcripts", false, "log reference and hypothesis transcripts")
	wordSep := flag.Int("wordsep", -1, "word separator label for WER (-1 = disabled)")
	scaleName := flag.String("scale", "none", "loss scale: none, target, target-sqrt, input, batch")
	batch := flag.Int("batch", 1, "batch size for -scale batch")

	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: seqanalyze -data BUNDLE [-beam N] [-attndir DIR]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *beam < 1 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", decoder.ErrInvalidBeamWidth)
		os.Exit(1)
	}

	mode, err := parseScale(*scaleName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bundle, err := loadBundle(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	crit := criterion.NewForceAlignCriterion(bundle.classes, bundle.trans, mode)
	crit.BatchSize = *batch

	steps := *maxSteps
	if steps <= 0 {
		steps = bundle.maxStepRows
	}
	cfg := decoder.Config{EOS: *eos, MaxSteps: steps, BeamWidth: *beam}

	opts := []seqcrit.Option{}
	if *attnDir != "" {
		opts = append(opts, seqcrit.WithAttentionDir(*attnDir))
	}
	if *view {
		opts = append(opts, seqcrit.WithTranscripts(os.Stdout))
	}
	if *wordSep >= 0 {
		opts = append(opts, seqcrit.WithWordSeparator(*wordSep))
	}

	analyzer := seqcrit.NewAnalyzer(crit, cfg, opts...)
	report := analyzer.Run(bundle.utts)
	fmt.Print(report)
}

func parseScale(name string) (criterion.ScaleMode, error) {
	switch name {
	case "none":
		return criterion.ScaleNone, nil
	case "target":
		return criterion.ScaleTargetLen, nil
	case "target-sqrt":
		return criterion.ScaleTargetLenSqrt, nil
	case "input":
		return criterion.ScaleInputLen, nil
	case "batch":
		return criterion.ScaleBatch, nil
	default:
		return 0, fmt.Errorf("unknown scale mode %q", name)
	}
}

// replayState drives the decoder from dumped step distributions and collects
// the matching attention rows as the decode advances.
type replayState struct {
	t    int
	dist [][]float64
	attn [][]float64
	seen [][]float64
}

func (s *replayState) Clone() decoder.State {
	c := *s
	c.seen = append([][]float64(nil), s.seen...)
	return &c
}

func (s *replayState) Attention() [][]float64 {
	return s.seen
}

func replayStep(prev int, st decoder.State) ([]float64, decoder.State, error) {
	rs, ok := st.(*replayState)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected decoder state %T", st)
	}
	if rs.t >= len(rs.dist) {
		return nil, nil, fmt.Errorf("step %d beyond %d dumped distributions", rs.t, len(rs.dist))
	}
	next := &replayState{t: rs.t + 1, dist: rs.dist, attn: rs.attn, seen: rs.seen}
	if rs.t < len(rs.attn) {
		next.seen = append(append([][]float64(nil), rs.seen...), rs.attn[rs.t])
	}
	return rs.dist[rs.t], next, nil
}

type bundle struct {
	classes     int
	trans       *lattice.Transitions
	utts        []seqcrit.Utterance
	maxStepRows int
}

func loadBundle(path string) (*bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	b := &bundle{}
	var (
		id       string
		emitRows [][]float64
		stepRows [][]float64
		attnRows [][]float64
		haveUtt  bool
	)

	flush := func(target []int) error {
		if !haveUtt {
			return fmt.Errorf("target before any utt header")
		}
		if len(emitRows) == 0 {
			return fmt.Errorf("utterance %s has no emissions", id)
		}
		emit, err := lattice.EmissionsFromRows(emitRows)
		if err != nil {
			return fmt.Errorf("utterance %s: %w", id, err)
		}
		if b.classes == 0 {
			b.classes = emit.N
		} else if emit.N != b.classes {
			return fmt.Errorf("utterance %s has %d classes, bundle has %d", id, emit.N, b.classes)
		}
		dist := stepRows
		if dist == nil {
			dist = emitRows
		}
		if len(dist) > b.maxStepRows {
			b.maxStepRows = len(dist)
		}
		b.utts = append(b.utts, seqcrit.Utterance{
			ID:        id,
			Emissions: emit,
			Target:    target,
			Step:      replayStep,
			InitState: &replayState{dist: dist, attn: attnRows},
		})
		id, emitRows, stepRows, attnRows, haveUtt = "", nil, nil, nil, false
		return nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "trans":
			n, err := atoiField(fields, 1)
			if err != nil {
				return nil, err
			}
			rows, err := readMatrix(sc, n, n)
			if err != nil {
				return nil, fmt.Errorf("trans: %w", err)
			}
			tr, err := lattice.NewTransitions(n)
			if err != nil {
				return nil, err
			}
			for to := 0; to < n; to++ {
				for from := 0; from < n; from++ {
					tr.Set(to, from, rows[to][from])
				}
			}
			b.trans = tr
		case "utt":
			if len(fields) < 2 {
				return nil, fmt.Errorf("utt header without id")
			}
			if haveUtt {
				return nil, fmt.Errorf("utterance %s has no target", id)
			}
			id = fields[1]
			haveUtt = true
		case "emit", "step", "attn":
			if !haveUtt {
				return nil, fmt.Errorf("%s section before any utt header", fields[0])
			}
			rows, err := readSection(sc, fields)
			if err != nil {
				return nil, fmt.Errorf("utterance %s: %w", id, err)
			}
			switch fields[0] {
			case "emit":
				emitRows = rows
			case "step":
				stepRows = rows
			case "attn":
				attnRows = rows
			}
		case "target":
			target := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				v, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("utterance %s: bad target label %q", id, f)
				}
				target = append(target, v)
			}
			if err := flush(target); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown directive %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if haveUtt {
		return nil, fmt.Errorf("utterance %s has no target", id)
	}
	if len(b.utts) == 0 {
		return nil, fmt.Errorf("bundle %s holds no utterances", path)
	}
	return b, nil
}

func readSection(sc *bufio.Scanner, fields []string) ([][]float64, error) {
	rows, err := atoiField(fields, 1)
	if err != nil {
		return nil, err
	}
	cols, err := atoiField(fields, 2)
	if err != nil {
		return nil, err
	}
	return readMatrix(sc, rows, cols)
}

func atoiField(fields []string, i int) (int, error) {
	if i >= len(fields) {
		return 0, fmt.Errorf("%s header needs %d dimensions", fields[0], i)
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s header has bad dimension %q", fields[0], fields[i])
	}
	return v, nil
}

func readMatrix(sc *bufio.Scanner, rows, cols int) ([][]float64, error) {
	out := make([][]float64, 0, rows)
	for len(out) < rows {
		if !sc.Scan() {
			return nil, fmt.Errorf("matrix truncated at row %d of %d", len(out), rows)
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != cols {
			return nil, fmt.Errorf("row %d has %d values, want %d", len(out), len(fields), cols)
		}
		row := make([]float64, cols)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad value %q", len(out), f)
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return out, nil
}
