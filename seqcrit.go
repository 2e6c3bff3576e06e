// Package seqcrit evaluates sequence-model outputs for speech recognition:
// it scores targets against emission lattices with a forced-alignment
// criterion, decodes hypotheses with teacher-forced, greedy, and beam-search
// policies, and accumulates letter/word error rates across an evaluation run.
package seqcrit

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ieee0824/seqcrit-go/criterion"
	"github.com/ieee0824/seqcrit-go/decoder"
	"github.com/ieee0824/seqcrit-go/lattice"
	"github.com/ieee0824/seqcrit-go/meter"
)

// Utterance is one evaluation sample. Emissions and Target feed the
// criterion; Step and InitState drive the autoregressive decoder. Targets
// carry no EOS token.
type Utterance struct {
	ID        string
	Emissions *lattice.Emissions
	Target    []int
	Step      decoder.StepFunc
	InitState decoder.State
}

// UtteranceResult holds the per-utterance outputs.
type UtteranceResult struct {
	ID            string
	Loss          float64
	TeacherForced []int // arg-max path, truncated at the first EOS
	Greedy        []int
	Beam          []int
	BeamScore     float64
	LER           meter.Stats // greedy-decode error against the target
}

// Report aggregates an evaluation run.
type Report struct {
	Viterbi       meter.Stats // greedy free-decode error rate
	Beam          meter.Stats
	TeacherForced meter.Stats
	BeamWER       meter.Stats // populated when a word separator is configured
	AvgLoss       float64
	Utterances    int
	Failures      int
}

// String renders the aggregate lines the evaluation tools log.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Beam Search LER: %.4f, DEL: %d, INS: %d, SUB: %d\n",
		r.Beam.ErrorRate, r.Beam.Dels, r.Beam.Ins, r.Beam.Subs)
	fmt.Fprintf(&b, "Viterbi LER: %.4f, DEL: %d, INS: %d, SUB: %d\n",
		r.Viterbi.ErrorRate, r.Viterbi.Dels, r.Viterbi.Ins, r.Viterbi.Subs)
	fmt.Fprintf(&b, "Teacher Forced LER: %.4f, Loss: %.4f\n",
		r.TeacherForced.ErrorRate, r.AvgLoss)
	if r.BeamWER.RefLen > 0 {
		fmt.Fprintf(&b, "Beam Search WER: %.4f\n", r.BeamWER.ErrorRate)
	}
	if r.Failures > 0 {
		fmt.Fprintf(&b, "Failed utterances: %d of %d\n", r.Failures, r.Utterances)
	}
	return b.String()
}

// Analyzer runs the per-utterance decode/score pipeline and accumulates
// metrics. Meter updates are serialized internally, so independent
// utterances may be analyzed concurrently.
type Analyzer struct {
	Criterion criterion.SequenceCriterion
	DecCfg    decoder.Config

	attnDir     string
	transcripts io.Writer
	wordSep     int
	symbol      func(int) string

	mu         sync.Mutex
	viterbiLER meter.EditDistanceMeter
	beamLER    meter.EditDistanceMeter
	tfLER      meter.EditDistanceMeter
	beamWER    meter.EditDistanceMeter
	loss       meter.AverageValueMeter
	failures   int
	utts       int
	uid        int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithAttentionDir enables per-utterance attention dumps into dir.
func WithAttentionDir(dir string) Option {
	return func(a *Analyzer) {
		a.attnDir = dir
	}
}

// WithTranscripts logs per-utterance reference and hypothesis transcripts to w.
func WithTranscripts(w io.Writer) Option {
	return func(a *Analyzer) {
		a.transcripts = w
	}
}

// WithWordSeparator enables word-level error metering by splitting label
// sequences on sep.
func WithWordSeparator(sep int) Option {
	return func(a *Analyzer) {
		a.wordSep = sep
	}
}

// WithSymbols sets the label-to-symbol mapping used for transcripts and
// attention keys. Defaults to the decimal label index.
func WithSymbols(symbol func(int) string) Option {
	return func(a *Analyzer) {
		a.symbol = symbol
	}
}

// NewAnalyzer creates an Analyzer over the given criterion and decoder
// configuration.
func NewAnalyzer(crit criterion.SequenceCriterion, cfg decoder.Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		Criterion: crit,
		DecCfg:    cfg,
		wordSep:   -1,
		symbol:    strconv.Itoa,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scores and decodes one utterance and folds its metrics into the
// run. Errors are per-utterance: the analyzer records the failure and stays
// usable for the rest of the batch.
func (a *Analyzer) Analyze(utt Utterance) (*UtteranceResult, error) {
	a.mu.Lock()
	a.utts++
	a.uid++
	id := uttID(utt.ID, a.uid)
	a.mu.Unlock()

	res, err := a.analyze(utt, id)
	if err != nil {
		a.mu.Lock()
		a.failures++
		a.mu.Unlock()
		return nil, fmt.Errorf("utterance %s: %w", id, err)
	}

	var single meter.EditDistanceMeter
	single.Add(res.Greedy, utt.Target)
	res.LER = single.Value()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loss.Add(res.Loss)
	a.viterbiLER.Add(res.Greedy, utt.Target)
	a.beamLER.Add(res.Beam, utt.Target)
	a.tfLER.Add(res.TeacherForced, utt.Target)
	if a.wordSep >= 0 {
		a.beamWER.AddWords(res.Beam, utt.Target, a.wordSep)
	}
	if a.transcripts != nil {
		a.writeTranscript(res, utt.Target)
	}
	return res, nil
}

// analyze runs the pipeline without touching shared state.
func (a *Analyzer) analyze(utt Utterance, id string) (*UtteranceResult, error) {
	if len(utt.Target) == 0 {
		return nil, meter.ErrEmptyReference
	}
	loss, err := a.Criterion.Forward(utt.Emissions, utt.Target)
	if err != nil {
		return nil, fmt.Errorf("criterion: %w", err)
	}

	tf, err := decoder.TeacherForced(utt.Step, utt.InitState, utt.Target)
	if err != nil {
		return nil, err
	}
	tf = truncateAtEOS(tf, a.DecCfg.EOS)

	greedy, err := decoder.Greedy(utt.Step, utt.InitState, a.DecCfg)
	if err != nil {
		return nil, err
	}

	beam := greedy
	if a.DecCfg.BeamWidth > 1 {
		beam, err = decoder.BeamSearch(utt.Step, utt.InitState, a.DecCfg)
		if err != nil {
			return nil, err
		}
	}

	res := &UtteranceResult{
		ID:            id,
		Loss:          loss,
		TeacherForced: tf,
		Greedy:        greedy.Labels,
		Beam:          beam.Labels,
		BeamScore:     beam.Score,
	}

	if a.attnDir != "" {
		if err := a.exportAttention(id, greedy); err != nil {
			return nil, fmt.Errorf("attention export: %w", err)
		}
	}
	return res, nil
}

// Run analyzes every utterance in order. One utterance's failure never
// aborts the batch; failures are tallied in the report.
func (a *Analyzer) Run(utts []Utterance) Report {
	for _, utt := range utts {
		a.Analyze(utt)
	}
	return a.Report()
}

// Report snapshots the aggregate metrics.
func (a *Analyzer) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Report{
		Viterbi:       a.viterbiLER.Value(),
		Beam:          a.beamLER.Value(),
		TeacherForced: a.tfLER.Value(),
		BeamWER:       a.beamWER.Value(),
		AvgLoss:       a.loss.Value(),
		Utterances:    a.utts,
		Failures:      a.failures,
	}
}

func (a *Analyzer) writeTranscript(res *UtteranceResult, target []int) {
	fmt.Fprintf(a.transcripts, "UID: %s, LER: %.4f, DEL: %d, INS: %d, SUB: %d\n",
		res.ID, res.LER.ErrorRate, res.LER.Dels, res.LER.Ins, res.LER.Subs)
	fmt.Fprintf(a.transcripts, "REF     %s\n", a.formatSeq(target))
	fmt.Fprintf(a.transcripts, "BEAM HYP  %s\n", a.formatSeq(res.Beam))
	fmt.Fprintf(a.transcripts, "VP HYP  %s\n", a.formatSeq(res.Greedy))
	fmt.Fprintf(a.transcripts, "TF HYP  %s\n", a.formatSeq(res.TeacherForced))
	fmt.Fprintln(a.transcripts, "===============")
}

func (a *Analyzer) formatSeq(labels []int) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = a.symbol(l)
	}
	return strings.Join(parts, " ")
}

func uttID(id string, uid int) string {
	if id != "" {
		return id
	}
	return strconv.Itoa(uid)
}

// truncateAtEOS cuts the sequence at (and excluding) the first EOS.
func truncateAtEOS(labels []int, eos int) []int {
	for i, l := range labels {
		if l == eos {
			return labels[:i]
		}
	}
	return labels
}
