// Package overview builds the artifact-level texts stored in the
// overview collections. Overviews are what the first retrieval stage
// searches, so a degraded overview is always better than none: builders
// fall back to concatenation instead of failing.
package overview

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/manak-ai/stratum/internal/summarize"
)

// Source values recorded in overview metadata so a reader can tell how
// the text was produced.
const (
	SourceSummarized     = "summarized"
	SourceGenerated      = "generated"
	SourceConcatFallback = "concat_fallback"
)

// concatFallbackTexts bounds how many inputs the concatenation fallback
// joins when summarization fails.
const concatFallbackTexts = 5

// ID returns the overview record ID for an artifact.
func ID(artifactID string) string {
	return artifactID + "_overview"
}

// File is one repository file considered for the repository overview.
type File struct {
	Path    string
	Content string
}

// DocumentBuilder summarizes a document's chunks into one overview text.
type DocumentBuilder struct {
	summarizer *summarize.Hierarchical
	log        *slog.Logger
}

func NewDocumentBuilder(summarizer *summarize.Hierarchical, log *slog.Logger) *DocumentBuilder {
	return &DocumentBuilder{summarizer: summarizer, log: log}
}

// Build returns the overview text and its source. It never fails: when
// summarization errors the first chunks are concatenated instead.
func (b *DocumentBuilder) Build(ctx context.Context, docID string, chunkTexts []string) (string, string) {
	if len(chunkTexts) == 0 {
		return "", SourceConcatFallback
	}
	text, err := b.summarizer.SummarizeAll(ctx, chunkTexts)
	if err != nil {
		b.log.Warn("document overview summarization failed, falling back to concatenation",
			slog.String("doc_id", docID), slog.String("error", err.Error()))
		return concatTexts(chunkTexts), SourceConcatFallback
	}
	return text, SourceSummarized
}

// RepositoryBuilder produces a repository overview, preferring the
// repository's own README over anything generated.
type RepositoryBuilder struct {
	summarizer     *summarize.Hierarchical
	readmeMaxChars int
	topFiles       int
	perFileLimit   int
	log            *slog.Logger
}

func NewRepositoryBuilder(summarizer *summarize.Hierarchical, readmeMaxChars, topFiles, perFileLimit int, log *slog.Logger) *RepositoryBuilder {
	if readmeMaxChars <= 0 {
		readmeMaxChars = 20000
	}
	if topFiles <= 0 {
		topFiles = 10
	}
	if perFileLimit <= 0 {
		perFileLimit = 5000
	}
	return &RepositoryBuilder{
		summarizer:     summarizer,
		readmeMaxChars: readmeMaxChars,
		topFiles:       topFiles,
		perFileLimit:   perFileLimit,
		log:            log,
	}
}

// Build returns the overview text and its source: the README path when a
// README was used, "generated" for a summary over the largest files, or
// "concat_fallback" when summarization failed.
func (b *RepositoryBuilder) Build(ctx context.Context, repoID string, files []File) (string, string) {
	if readme, ok := findReadme(files); ok {
		if len(readme.Content) <= b.readmeMaxChars {
			return readme.Content, readme.Path
		}
		text, err := b.summarizer.SummarizeAll(ctx, []string{readme.Content})
		if err == nil {
			return text, readme.Path
		}
		b.log.Warn("readme summarization failed, falling back to truncation",
			slog.String("repository_id", repoID), slog.String("error", err.Error()))
		return summarize.Truncate(readme.Content, b.readmeMaxChars), SourceConcatFallback
	}

	texts := b.topFileTexts(files)
	if len(texts) == 0 {
		return "", SourceConcatFallback
	}
	text, err := b.summarizer.SummarizeAll(ctx, texts)
	if err != nil {
		b.log.Warn("repository overview summarization failed, falling back to concatenation",
			slog.String("repository_id", repoID), slog.String("error", err.Error()))
		return concatTexts(texts), SourceConcatFallback
	}
	return text, SourceGenerated
}

// topFileTexts returns the contents of the largest files, each capped at
// perFileLimit characters.
func (b *RepositoryBuilder) topFileTexts(files []File) []string {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Content) > len(sorted[j].Content)
	})
	if len(sorted) > b.topFiles {
		sorted = sorted[:b.topFiles]
	}
	var texts []string
	for _, f := range sorted {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		texts = append(texts, summarize.Truncate(f.Content, b.perFileLimit))
	}
	return texts
}

func findReadme(files []File) (File, bool) {
	for _, f := range files {
		name := strings.ToLower(f.Path)
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		if strings.HasPrefix(name, "readme") && strings.TrimSpace(f.Content) != "" {
			return f, true
		}
	}
	return File{}, false
}

func concatTexts(texts []string) string {
	if len(texts) > concatFallbackTexts {
		texts = texts[:concatFallbackTexts]
	}
	return strings.Join(texts, "\n\n")
}
