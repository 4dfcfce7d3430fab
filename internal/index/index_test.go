package index

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manak-ai/stratum/internal/chunk"
	"github.com/manak-ai/stratum/internal/infer"
	"github.com/manak-ai/stratum/internal/overview"
	"github.com/manak-ai/stratum/internal/store"
	"github.com/manak-ai/stratum/internal/summarize"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1, 0}, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = s.Embed(ctx, text)
	}
	return out, nil
}

func (stubEmbedder) Dimensions() int   { return 3 }
func (stubEmbedder) ModelName() string { return "stub" }

type echoSeq2Seq struct{}

func (echoSeq2Seq) Generate(_ context.Context, text string, _ infer.GenerateOptions) (string, error) {
	return "SUMMARY(" + summarize.Truncate(text, 60) + ")", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hierarchical() *summarize.Hierarchical {
	extractive := summarize.NewExtractive(stubEmbedder{}, 5)
	hybrid := summarize.NewHybrid(extractive, summarize.NewAbstractive(echoSeq2Seq{}, 150, 30))
	return summarize.NewHierarchical(extractive, hybrid)
}

type fixture struct {
	overviews *store.Collection
	chunks    *store.Collection
	docs      *DocumentIndexer
	repos     *RepositoryIndexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	overviews := store.NewCollection("overview", 3)
	chunks := store.NewCollection("chunk", 3)
	emb := stubEmbedder{}
	log := testLogger()

	docs := NewDocumentIndexer(
		chunk.NewDocumentChunker(200, 50),
		overview.NewDocumentBuilder(hierarchical(), log),
		store.NewWriter(overviews, emb),
		store.NewWriter(chunks, emb),
		log,
	)
	repos := NewRepositoryIndexer(
		chunk.NewRepositoryChunker(1200, 200),
		overview.NewRepositoryBuilder(hierarchical(), 20000, 10, 5000, log),
		store.NewWriter(overviews, emb),
		store.NewWriter(chunks, emb),
		chunks,
		log,
	)
	return &fixture{overviews: overviews, chunks: chunks, docs: docs, repos: repos}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocumentIndexHappyPath(t *testing.T) {
	f := newFixture(t)

	content := []byte("# Guide\nHow the billing export works.\n\n## Details\nMore words here.")
	result, err := f.docs.Index(context.Background(), DocumentArtifact{
		ID:       "d1",
		Name:     "guide",
		FileName: "guide.md",
		FilePath: "docs/guide.md",
		MimeType: "text/markdown",
		Content:  content,
	})
	require.NoError(t, err)
	assert.Equal(t, "d1_overview", result.OverviewID)
	assert.Equal(t, 2, result.Chunks)

	ov, ok := f.overviews.Get("d1_overview")
	require.True(t, ok)
	assert.Equal(t, "overview", ov.Meta[chunk.MetaType])
	assert.Equal(t, "d1", ov.Meta[chunk.MetaDocID])
	assert.NotEmpty(t, ov.Content)
	assert.Equal(t, 2, f.chunks.Count())
}

func TestDocumentIndexUnsupportedExtension(t *testing.T) {
	f := newFixture(t)

	_, err := f.docs.Index(context.Background(), DocumentArtifact{
		ID: "d1", FileName: "bundle.zip", Content: []byte("data"),
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.overviews.Count())
	assert.Equal(t, 0, f.chunks.Count())
}

func TestDocumentIndexEmptyContent(t *testing.T) {
	f := newFixture(t)

	_, err := f.docs.Index(context.Background(), DocumentArtifact{
		ID: "d1", FileName: "empty.md", Content: []byte("  \n \n"),
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.overviews.Count())
}

func TestRepositoryIndexSmoke(t *testing.T) {
	f := newFixture(t)

	archive := buildZip(t, map[string]string{
		"proj-main/README.md": "Hello project X",
		"proj-main/src/a.py":  strings.Repeat("print('a')\n", 18),
	})
	result, err := f.repos.Index(context.Background(), RepositoryArtifact{
		ID: "r1", Name: "proj", Branch: "main", Archive: archive,
	})
	require.NoError(t, err)

	require.Len(t, result.IndexedFiles, 1)
	assert.Equal(t, "src/a.py", result.IndexedFiles[0].Path)
	assert.Equal(t, "r1:src/a.py:chunk:", result.IndexedFiles[0].IDPrefix)
	assert.Equal(t, "r1_overview", result.OverviewID)

	ov, ok := f.overviews.Get("r1_overview")
	require.True(t, ok)
	assert.Contains(t, ov.Content, "Hello project X")
	assert.Equal(t, "README.md", ov.Meta[chunk.MetaSource])

	// The README itself is never chunked.
	for _, id := range []string{"r1:README.md:chunk:0"} {
		_, ok := f.chunks.Get(id)
		assert.False(t, ok)
	}
	_, ok = f.chunks.Get("r1:src/a.py:chunk:0")
	assert.True(t, ok)
}

func TestRepositoryIndexSkipsDotfilesAndUnknownTypes(t *testing.T) {
	f := newFixture(t)

	archive := buildZip(t, map[string]string{
		"r/.github/workflows/ci.yml": "jobs: {}",
		"r/img/logo.png":             "\x89PNG",
		"r/app/main.go":              "package main",
		"r/Dockerfile":               "FROM alpine",
		"r/config.yaml":              "key: value",
	})
	result, err := f.repos.Index(context.Background(), RepositoryArtifact{
		ID: "r2", Branch: "main", Archive: archive,
	})
	require.NoError(t, err)

	var paths []string
	for _, file := range result.IndexedFiles {
		paths = append(paths, file.Path)
	}
	// .go is not in the indexable set; dotfile paths and binaries are out.
	assert.ElementsMatch(t, []string{"Dockerfile", "config.yaml"}, paths)
}

func TestRepositoryIndexGeneratedOverviewWithoutReadme(t *testing.T) {
	f := newFixture(t)

	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("r/mod_%02d.py", i)] = strings.Repeat("x = 1\n", (12-i)*20)
	}
	result, err := f.repos.Index(context.Background(), RepositoryArtifact{
		ID: "r3", Branch: "main", Archive: buildZip(t, files),
	})
	require.NoError(t, err)
	assert.Len(t, result.IndexedFiles, 12)

	ov, ok := f.overviews.Get("r3_overview")
	require.True(t, ok)
	assert.Equal(t, overview.SourceGenerated, ov.Meta[chunk.MetaSource])
	assert.NotEmpty(t, ov.Content)
}

func TestRepositoryIndexBadArchive(t *testing.T) {
	f := newFixture(t)

	_, err := f.repos.Index(context.Background(), RepositoryArtifact{
		ID: "r4", Archive: []byte("not a zip"),
	})
	require.Error(t, err)
}

func TestRepositoryReindexReplacesFileChunks(t *testing.T) {
	f := newFixture(t)

	long := buildZip(t, map[string]string{"r/a.py": strings.Repeat("line\n", 600)})
	_, err := f.repos.Index(context.Background(), RepositoryArtifact{ID: "r5", Branch: "main", Archive: long})
	require.NoError(t, err)
	before := f.chunks.Count()
	require.Greater(t, before, 1)

	short := buildZip(t, map[string]string{"r/a.py": "line\n"})
	_, err = f.repos.Index(context.Background(), RepositoryArtifact{ID: "r5", Branch: "main", Archive: short})
	require.NoError(t, err)
	assert.Equal(t, 1, f.chunks.Count())
}
