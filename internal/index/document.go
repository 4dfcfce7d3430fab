// Package index implements the write path: chunk an artifact, build its
// overview, and persist both into the vector collections.
package index

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/manak-ai/stratum/internal/apperr"
	"github.com/manak-ai/stratum/internal/chunk"
	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/overview"
	"github.com/manak-ai/stratum/internal/store"
)

// documentExts are the attachment extensions accepted for document
// ingestion.
var documentExts = map[string]struct{}{
	".md":   {},
	".txt":  {},
	".pdf":  {},
	".docx": {},
	".html": {},
}

// SupportedDocument reports whether the attachment's extension is
// accepted for ingestion. The ingress checks this before downloading.
func SupportedDocument(fileName string) bool {
	_, ok := documentExts[strings.ToLower(path.Ext(fileName))]
	return ok
}

// DocumentArtifact is a fetched document ready for indexing.
type DocumentArtifact struct {
	ID       string
	Name     string
	FilePath string
	FileName string
	MimeType string
	Content  []byte
}

// DocumentIndexer chunks a document, builds its overview, and writes
// both collections.
type DocumentIndexer struct {
	chunker        *chunk.DocumentChunker
	builder        *overview.DocumentBuilder
	overviewWriter *store.Writer
	chunkWriter    *store.Writer
	log            *slog.Logger
}

func NewDocumentIndexer(
	chunker *chunk.DocumentChunker,
	builder *overview.DocumentBuilder,
	overviewWriter, chunkWriter *store.Writer,
	log *slog.Logger,
) *DocumentIndexer {
	return &DocumentIndexer{
		chunker:        chunker,
		builder:        builder,
		overviewWriter: overviewWriter,
		chunkWriter:    chunkWriter,
		log:            log,
	}
}

// Index runs the full document write path. The overview write happens
// before the chunk writes; the two are not transactional, so a chunk
// write failure leaves the overview persisted.
func (ix *DocumentIndexer) Index(ctx context.Context, doc DocumentArtifact) (model.DocumentIndexResult, error) {
	result := model.DocumentIndexResult{DocumentID: doc.ID, Name: doc.Name}

	ext := strings.ToLower(path.Ext(doc.FileName))
	if _, ok := documentExts[ext]; !ok {
		return result, apperr.Validation(apperr.CodeUnsupportedType,
			"unsupported document type "+ext+" for "+doc.FileName)
	}

	chunks, _, err := ix.chunker.Chunk(doc.ID, doc.Content, chunk.FileInfo{
		Path:     doc.FilePath,
		Name:     doc.FileName,
		MimeType: doc.MimeType,
	})
	if err != nil {
		return result, err
	}
	if len(chunks) == 0 {
		return result, apperr.Validation(apperr.CodeEmptyContent,
			"document "+doc.ID+" produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	overviewText, source := ix.builder.Build(ctx, doc.ID, texts)
	overviewID := overview.ID(doc.ID)

	overviewMeta := map[string]any{
		chunk.MetaType:       chunk.TypeOverview,
		chunk.MetaSourceKind: chunk.SourceDocument,
		chunk.MetaDocID:      doc.ID,
		chunk.MetaFileName:   doc.FileName,
		chunk.MetaSource:     source,
	}
	if err := ix.overviewWriter.WriteOverview(ctx, overviewID, overviewText, overviewMeta); err != nil {
		ix.log.Error("document overview write failed",
			slog.String("doc_id", doc.ID), slog.String("error", err.Error()))
		return result, err
	}
	if err := ix.chunkWriter.WriteChunks(ctx, chunks); err != nil {
		ix.log.Error("document chunk write failed",
			slog.String("doc_id", doc.ID), slog.String("error", err.Error()))
		return result, err
	}

	result.Chunks = len(chunks)
	result.OverviewID = overviewID
	ix.log.Info("document indexed",
		slog.String("doc_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.String("overview_source", source))
	return result, nil
}
