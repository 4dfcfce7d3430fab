package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manak-ai/stratum/internal/infer"
)

// mapEmbedder returns preset vectors by exact text, and a default unit
// vector for anything else.
type mapEmbedder struct {
	vectors map[string][]float32
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return m.one(text), nil
}

func (m *mapEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.one(t)
	}
	return out, nil
}

func (m *mapEmbedder) one(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (m *mapEmbedder) Dimensions() int   { return 3 }
func (m *mapEmbedder) ModelName() string { return "map-embedder" }

// echoSeq2Seq wraps the input so tests can observe the call; failing
// variant always errors.
type echoSeq2Seq struct{ fail bool }

func (e *echoSeq2Seq) Generate(_ context.Context, text string, _ infer.GenerateOptions) (string, error) {
	if e.fail {
		return "", errors.New("model unavailable")
	}
	return "SUMMARY(" + text + ")", nil
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "One. Two. Three.", []string{"One.", "Two.", "Three."}},
		{"mixed punctuation", "Really? Yes! Fine.", []string{"Really?", "Yes!", "Fine."}},
		{"decimal not split", "Pi is 3.14 exactly. Next.", []string{"Pi is 3.14 exactly.", "Next."}},
		{"no terminal punctuation", "just a fragment", []string{"just a fragment"}},
		{"closing quote", `He said "stop." Then left.`, []string{`He said "stop."`, "Then left."}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.input))
		})
	}
}

func TestExtractiveShortInputUnchanged(t *testing.T) {
	e := NewExtractive(&mapEmbedder{}, 5)
	input := "One. Two. Three."
	out, err := e.Summarize(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestExtractiveEmptyInput(t *testing.T) {
	e := NewExtractive(&mapEmbedder{}, 5)
	out, err := e.Summarize(context.Background(), "   \n ")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestExtractivePicksCentralSentencesInOrder(t *testing.T) {
	// Four sentences share direction [1,0,0]; one is orthogonal. The
	// centroid leans toward [1,0,0], so the outlier must be dropped.
	emb := &mapEmbedder{vectors: map[string][]float32{
		"Alpha one.":    {1, 0, 0},
		"Beta two.":     {1, 0.1, 0},
		"Outlier here.": {0, 0, 1},
		"Gamma three.":  {1, 0.2, 0},
		"Delta four.":   {1, 0.1, 0.1},
	}}
	e := NewExtractive(emb, 3)

	input := "Alpha one. Beta two. Outlier here. Gamma three. Delta four."
	out, err := e.Summarize(context.Background(), input)
	require.NoError(t, err)

	picked := SplitSentences(out)
	assert.Len(t, picked, 3)
	assert.NotContains(t, picked, "Outlier here.")

	// Picked sentences appear in their original order.
	lastIdx := -1
	all := SplitSentences(input)
	for _, p := range picked {
		idx := indexOf(all, p)
		require.GreaterOrEqual(t, idx, 0, "sentence %q must come from the input", p)
		assert.Greater(t, idx, lastIdx, "original order must be preserved")
		lastIdx = idx
	}
}

func indexOf(list []string, target string) int {
	for i, s := range list {
		if s == target {
			return i
		}
	}
	return -1
}

func TestAbstractive(t *testing.T) {
	a := NewAbstractive(&echoSeq2Seq{}, 150, 30)
	out, err := a.Summarize(context.Background(), "long input text")
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY(long input text)", out)
}

func TestAbstractiveEmptyInput(t *testing.T) {
	a := NewAbstractive(&echoSeq2Seq{}, 150, 30)
	out, err := a.Summarize(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestAbstractiveFallbackTruncates(t *testing.T) {
	a := NewAbstractive(&echoSeq2Seq{fail: true}, 150, 30)
	input := strings.Repeat("x", 800)
	out, err := a.Summarize(context.Background(), input)
	require.NoError(t, err, "model failure must not surface")
	assert.Equal(t, strings.Repeat("x", AbstractiveFallbackChars), out)
}

func TestHybridChainsExtractiveIntoAbstractive(t *testing.T) {
	h := NewHybrid(NewExtractive(&mapEmbedder{}, 5), NewAbstractive(&echoSeq2Seq{}, 150, 30))
	out, err := h.Summarize(context.Background(), "One. Two.")
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY(One. Two.)", out)
}

func TestHierarchical(t *testing.T) {
	ex := NewExtractive(&mapEmbedder{}, 5)
	hy := NewHybrid(ex, NewAbstractive(&echoSeq2Seq{}, 150, 30))
	h := NewHierarchical(ex, hy)

	out, err := h.SummarizeAll(context.Background(), []string{"Chunk one.", "Chunk two."})
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY(Chunk one.\nChunk two.)", out)
}

func TestHierarchicalEmptyInput(t *testing.T) {
	ex := NewExtractive(&mapEmbedder{}, 5)
	hy := NewHybrid(ex, NewAbstractive(&echoSeq2Seq{}, 150, 30))
	h := NewHierarchical(ex, hy)

	out, err := h.SummarizeAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "hél", Truncate("héllo", 3))
}
