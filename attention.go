package seqcrit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ieee0824/seqcrit-go/decoder"
)

// AttentionState is implemented by decoder states that record attention
// weights, one row per decode step.
type AttentionState interface {
	decoder.State
	Attention() [][]float64
}

// exportAttention writes the attention matrix of a finished decode to
// <attnDir>/<id>_attn.out. The key line names the utterance and its decoded
// label path; matrix rows follow, one step per line. Decoders whose state
// does not expose attention are skipped silently.
func (a *Analyzer) exportAttention(id string, res *decoder.Result) error {
	st, ok := res.Final.(AttentionState)
	if !ok {
		return nil
	}
	attn := st.Attention()
	if len(attn) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(attentionKey(id, res.Labels, a.symbol))
	b.WriteByte('\n')
	for _, row := range attn {
		for i, v := range row {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", v)
		}
		b.WriteByte('\n')
	}

	name := filepath.Join(a.attnDir, id+"_attn.out")
	if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// attentionKey derives the dump key from the utterance id and the decoded
// label path, closed by the end-of-sequence marker.
func attentionKey(id string, labels []int, symbol func(int) string) string {
	var b strings.Builder
	b.WriteString(id)
	for _, l := range labels {
		b.WriteByte('-')
		b.WriteString(symbol(l))
	}
	b.WriteString("-<eos>")
	return b.String()
}
