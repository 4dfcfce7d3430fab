package service

import (
	"context"
	"log/slog"

	"github.com/manak-ai/stratum/internal/apperr"
	"github.com/manak-ai/stratum/internal/client"
	"github.com/manak-ai/stratum/internal/index"
	"github.com/manak-ai/stratum/internal/model"
	"github.com/manak-ai/stratum/internal/retrieve"
)

// documentClient is the slice of the document service client the facade
// needs; tests substitute a fake.
type documentClient interface {
	GetDocument(ctx context.Context, docID string) (*client.DocumentDTO, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}

// Document is the facade over the document pipeline: fetch, index
// asynchronously, query synchronously.
type Document struct {
	fetcher   documentClient
	indexer   *index.DocumentIndexer
	retriever *retrieve.MultiStage
	pool      *Pool
	log       *slog.Logger
}

func NewDocument(fetcher documentClient, indexer *index.DocumentIndexer, retriever *retrieve.MultiStage, pool *Pool, log *slog.Logger) *Document {
	return &Document{fetcher: fetcher, indexer: indexer, retriever: retriever, pool: pool, log: log}
}

// Add fetches the document's metadata and latest attachment, then
// dispatches indexing to the worker pool. The response acknowledges
// acceptance; indexing completes in the background.
func (s *Document) Add(ctx context.Context, req model.DocumentRequest) (model.DocumentResponse, error) {
	if req.DocumentID == "" {
		return model.DocumentResponse{}, apperr.Validation(apperr.CodeMissingID, "documentId must not be empty")
	}

	dto, err := s.fetcher.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return model.DocumentResponse{}, err
	}
	latest, ok := dto.LatestAttachment()
	if !ok {
		return model.DocumentResponse{}, apperr.Validation(apperr.CodeEmptyContent,
			"document "+req.DocumentID+" has no attachments")
	}
	if !index.SupportedDocument(latest.FileName) {
		return model.DocumentResponse{}, apperr.Validation(apperr.CodeUnsupportedType,
			"unsupported document type for "+latest.FileName)
	}

	content, err := s.fetcher.DownloadFile(ctx, latest.FilePath)
	if err != nil {
		return model.DocumentResponse{}, err
	}

	artifact := index.DocumentArtifact{
		ID:       req.DocumentID,
		Name:     dto.Name,
		FilePath: latest.FilePath,
		FileName: latest.FileName,
		MimeType: latest.MimeType,
		Content:  content,
	}
	s.pool.Submit("document:"+req.DocumentID, func(ctx context.Context) {
		if _, err := s.indexer.Index(ctx, artifact); err != nil {
			s.log.Error("document indexing failed",
				slog.String("doc_id", artifact.ID), slog.String("error", err.Error()))
		}
	})

	return model.DocumentResponse{
		DocumentID: req.DocumentID,
		Name:       dto.Name,
		Status:     model.StatusAccepted,
	}, nil
}

// OverviewQuery searches document overviews.
func (s *Document) OverviewQuery(ctx context.Context, req model.QueryRequest) (model.OverviewResponse, error) {
	return s.retriever.OverviewQuery(ctx, req)
}

// ChunkQuery searches document chunks.
func (s *Document) ChunkQuery(ctx context.Context, req model.QueryRequest) (model.ChunkResponse, error) {
	return s.retriever.ChunkQuery(ctx, req)
}
