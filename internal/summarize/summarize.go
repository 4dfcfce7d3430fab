// Package summarize implements the four summarization strategies:
// extractive (embedding centroid), abstractive (seq2seq model), hybrid
// (extractive then abstractive), and hierarchical (per-chunk extractive
// plus a top-level hybrid pass).
package summarize

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/manak-ai/stratum/internal/infer"
)

// AbstractiveFallbackChars is how much of the input survives when the
// seq2seq model fails.
const AbstractiveFallbackChars = 500

// Summarizer condenses a single text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ListSummarizer condenses a list of chunk texts into one summary.
type ListSummarizer interface {
	SummarizeAll(ctx context.Context, texts []string) (string, error)
}

// Extractive selects the sentences closest to the embedding centroid,
// preserving their original order.
type Extractive struct {
	embedder     infer.Embedder
	maxSentences int
}

// NewExtractive creates an extractive summarizer.
func NewExtractive(embedder infer.Embedder, maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Extractive{embedder: embedder, maxSentences: maxSentences}
}

// Summarize picks the maxSentences sentences most similar to the
// centroid. Inputs at or below the limit are returned unchanged.
func (e *Extractive) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	sentences := SplitSentences(text)
	if len(sentences) <= e.maxSentences {
		return text, nil
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return "", err
	}

	centroid := infer.Centroid(embeddings)
	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, emb := range embeddings {
		scores[i] = scored{index: i, score: infer.CosineSimilarity(emb, centroid)}
	}

	// Highest similarity first; ties keep the earlier sentence.
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return scores[a].index < scores[b].index
	})

	top := scores[:e.maxSentences]
	sort.Slice(top, func(a, b int) bool { return top[a].index < top[b].index })

	picked := make([]string, len(top))
	for i, s := range top {
		picked[i] = sentences[s.index]
	}
	return strings.Join(picked, " "), nil
}

// Abstractive generates a summary with the seq2seq model. Model failure
// degrades to the first AbstractiveFallbackChars characters of the
// input; it never returns an error.
type Abstractive struct {
	model     infer.Seq2Seq
	maxLength int
	minLength int
}

// NewAbstractive creates an abstractive summarizer.
func NewAbstractive(model infer.Seq2Seq, maxLength, minLength int) *Abstractive {
	if maxLength <= 0 {
		maxLength = 150
	}
	if minLength <= 0 {
		minLength = 30
	}
	return &Abstractive{model: model, maxLength: maxLength, minLength: minLength}
}

// Summarize runs the seq2seq model with truncation enabled.
func (a *Abstractive) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	out, err := a.model.Generate(ctx, text, infer.GenerateOptions{
		MaxLength:  a.maxLength,
		MinLength:  a.minLength,
		Truncation: true,
	})
	if err != nil {
		slog.Error("abstractive summarization failed, truncating input", slog.String("error", err.Error()))
		return Truncate(text, AbstractiveFallbackChars), nil
	}
	return out, nil
}

// Hybrid runs extractive then abstractive over the same input.
type Hybrid struct {
	extractive  *Extractive
	abstractive *Abstractive
}

// NewHybrid creates a hybrid summarizer.
func NewHybrid(extractive *Extractive, abstractive *Abstractive) *Hybrid {
	return &Hybrid{extractive: extractive, abstractive: abstractive}
}

// Summarize condenses with the extractive pass, then rewrites the
// result abstractively.
func (h *Hybrid) Summarize(ctx context.Context, text string) (string, error) {
	small, err := h.extractive.Summarize(ctx, text)
	if err != nil {
		return "", err
	}
	return h.abstractive.Summarize(ctx, small)
}

// Hierarchical summarizes each chunk extractively, joins the per-chunk
// summaries, and condenses the concatenation with a hybrid pass. Used
// for artifact-level overviews.
type Hierarchical struct {
	extractive *Extractive
	hybrid     *Hybrid
}

// NewHierarchical creates a hierarchical summarizer.
func NewHierarchical(extractive *Extractive, hybrid *Hybrid) *Hierarchical {
	return &Hierarchical{extractive: extractive, hybrid: hybrid}
}

// SummarizeAll produces the two-level summary over chunk texts.
func (h *Hierarchical) SummarizeAll(ctx context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", nil
	}

	summaries := make([]string, 0, len(texts))
	for _, text := range texts {
		s, err := h.extractive.Summarize(ctx, text)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, s)
	}

	return h.hybrid.Summarize(ctx, strings.Join(summaries, "\n"))
}

// Truncate returns the first n characters of text, rune-safe.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
