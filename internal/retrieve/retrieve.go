// Package retrieve implements the query pipeline: embed the query,
// search a collection, cross-rerank the candidates, and summarize the
// winners.
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/manak-ai/stratum/internal/chunk"
	"github.com/manak-ai/stratum/internal/infer"
	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/store"
	"github.com/manak-ai/stratum/internal/summarize"
)

const (
	// rerankSnippetChars caps the text fed to the cross-encoder per pair.
	rerankSnippetChars = 512

	// summaryFallbackChars caps the concatenation returned when the
	// summarizer fails.
	summaryFallbackChars = 4000

	// DefaultRerankTopK is the rerank cutoff when not configured.
	DefaultRerankTopK = 10

	// DefaultFinalSummaryTopK bounds the reranked chunks fed to the final
	// summary when not configured.
	DefaultFinalSummaryTopK = 10
)

// MultiStage queries one artifact class. Documents and repositories each
// get an instance, differing only in collections and the metadata field
// that names the artifact.
type MultiStage struct {
	overviews       *store.Collection
	chunks          *store.Collection
	artifactIDField string

	embedder         infer.Embedder
	encoder          infer.CrossEncoder
	summarizer       summarize.Summarizer
	rerankTopK       int
	finalSummaryTopK int
	log              *slog.Logger
}

func NewMultiStage(
	overviews, chunks *store.Collection,
	artifactIDField string,
	embedder infer.Embedder,
	encoder infer.CrossEncoder,
	summarizer summarize.Summarizer,
	rerankTopK, finalSummaryTopK int,
	log *slog.Logger,
) *MultiStage {
	if rerankTopK <= 0 {
		rerankTopK = DefaultRerankTopK
	}
	if finalSummaryTopK <= 0 {
		finalSummaryTopK = DefaultFinalSummaryTopK
	}
	return &MultiStage{
		overviews:        overviews,
		chunks:           chunks,
		artifactIDField:  artifactIDField,
		embedder:         embedder,
		encoder:          encoder,
		summarizer:       summarizer,
		rerankTopK:       rerankTopK,
		finalSummaryTopK: finalSummaryTopK,
		log:              log,
	}
}

// OverviewQuery searches the overview collection.
func (m *MultiStage) OverviewQuery(ctx context.Context, req model.QueryRequest) (model.OverviewResponse, error) {
	resp := model.OverviewResponse{
		Query:       req.Query,
		TopK:        req.TopK,
		ArtifactIDs: req.ArtifactIDs,
		Overviews:   []model.Hit{},
	}
	if err := req.Normalize(); err != nil {
		return resp, err
	}
	resp.TopK = req.TopK

	vector, err := m.embedder.Embed(ctx, req.Query)
	if err != nil {
		return resp, err
	}
	hits, err := m.overviews.Search(vector, req.TopK, m.filter(chunk.TypeOverview, req.ArtifactIDs))
	if err != nil {
		return resp, err
	}
	resp.Overviews = toModelHits(hits)
	return resp, nil
}

// ChunkQuery searches the chunk collection, dedups, reranks, and
// summarizes the surviving chunks.
func (m *MultiStage) ChunkQuery(ctx context.Context, req model.QueryRequest) (model.ChunkResponse, error) {
	resp := model.ChunkResponse{
		Query:       req.Query,
		TopK:        req.TopK,
		ArtifactIDs: req.ArtifactIDs,
		Chunks:      []model.Hit{},
	}
	if err := req.Normalize(); err != nil {
		return resp, err
	}
	resp.TopK = req.TopK

	vector, err := m.embedder.Embed(ctx, req.Query)
	if err != nil {
		return resp, err
	}
	hits, err := m.chunks.Search(vector, req.TopK, m.filter(chunk.TypeChunk, req.ArtifactIDs))
	if err != nil {
		return resp, err
	}

	candidates := dedupKeepLast(toModelHits(hits))
	if len(candidates) == 0 {
		return resp, nil
	}

	resp.Chunks = m.rerank(ctx, req.Query, candidates)
	resp.FinalSummary = m.summarize(ctx, resp.Chunks)
	return resp, nil
}

func (m *MultiStage) filter(recordType string, artifactIDs []string) store.Filter {
	typeFilter := store.FieldIn(chunk.MetaType, recordType)
	if len(artifactIDs) == 0 {
		return typeFilter
	}
	return store.And(typeFilter, store.FieldIn(m.artifactIDField, artifactIDs...))
}

// rerank scores (query, content) pairs with the cross-encoder and keeps
// the top rerankTopK. When the encoder fails the vector-similarity
// order survives, truncated to the same cutoff.
func (m *MultiStage) rerank(ctx context.Context, query string, hits []model.Hit) []model.Hit {
	scored := make([]model.Hit, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Content) != "" {
			scored = append(scored, h)
		}
	}
	if len(scored) == 0 {
		return []model.Hit{}
	}

	cutoff := m.rerankTopK
	if cutoff > len(scored) {
		cutoff = len(scored)
	}

	texts := make([]string, len(scored))
	for i, h := range scored {
		texts[i] = summarize.Truncate(h.Content, rerankSnippetChars)
	}
	scores, err := m.encoder.Score(ctx, query, texts)
	if err != nil || len(scores) != len(scored) {
		m.log.Warn("cross-encoder rerank failed, keeping similarity order",
			slog.String("query", query), slog.Any("error", err))
		return scored[:cutoff]
	}

	for i := range scored {
		scored[i].Score = scores[i]
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored[:cutoff]
}

// summarize condenses the top finalSummaryTopK reranked chunks.
// Summarizer failure degrades to the truncated concatenation rather
// than an error.
func (m *MultiStage) summarize(ctx context.Context, hits []model.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	if len(hits) > m.finalSummaryTopK {
		hits = hits[:m.finalSummaryTopK]
	}
	contents := make([]string, len(hits))
	for i, h := range hits {
		contents[i] = h.Content
	}
	joined := strings.Join(contents, "\n\n")

	summary, err := m.summarizer.Summarize(ctx, joined)
	if err != nil {
		m.log.Warn("final summary failed, truncating concatenation", slog.String("error", err.Error()))
		return summarize.Truncate(joined, summaryFallbackChars)
	}
	return summary
}

// dedupKeepLast drops duplicate IDs, keeping each ID's last occurrence
// at its first position.
func dedupKeepLast(hits []model.Hit) []model.Hit {
	order := make([]string, 0, len(hits))
	byID := make(map[string]model.Hit, len(hits))
	for _, h := range hits {
		if _, seen := byID[h.ID]; !seen {
			order = append(order, h.ID)
		}
		byID[h.ID] = h
	}
	out := make([]model.Hit, len(order))
	for i, id := range order {
		out[i] = byID[id]
	}
	return out
}

func toModelHits(hits []store.Hit) []model.Hit {
	out := make([]model.Hit, len(hits))
	for i, h := range hits {
		out[i] = model.Hit{
			ID:      h.Record.ID,
			Content: h.Record.Content,
			Meta:    h.Record.Meta,
			Score:   float64(h.Score),
		}
	}
	return out
}
