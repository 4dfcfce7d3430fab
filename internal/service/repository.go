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

// repositoryClient is the slice of the repository service client the
// facade needs; tests substitute a fake.
type repositoryClient interface {
	GetRepository(ctx context.Context, repoID string) (*client.RepositoryDTO, error)
	DownloadDefault(ctx context.Context, repoID string) ([]byte, error)
	DownloadBranch(ctx context.Context, repoID, branch string) ([]byte, error)
}

// Repository is the facade over the repository pipeline.
type Repository struct {
	fetcher   repositoryClient
	indexer   *index.RepositoryIndexer
	retriever *retrieve.MultiStage
	pool      *Pool
	log       *slog.Logger
}

func NewRepository(fetcher repositoryClient, indexer *index.RepositoryIndexer, retriever *retrieve.MultiStage, pool *Pool, log *slog.Logger) *Repository {
	return &Repository{fetcher: fetcher, indexer: indexer, retriever: retriever, pool: pool, log: log}
}

// Add fetches repository metadata and the branch archive, then
// dispatches indexing to the worker pool. When the request names no
// branch, the metadata's default branch is used.
func (s *Repository) Add(ctx context.Context, req model.RepositoryRequest) (model.RepositoryResponse, error) {
	if req.RepositoryID == "" {
		return model.RepositoryResponse{}, apperr.Validation(apperr.CodeMissingID, "repositoryId must not be empty")
	}

	dto, err := s.fetcher.GetRepository(ctx, req.RepositoryID)
	if err != nil {
		return model.RepositoryResponse{}, err
	}

	var archive []byte
	branch := req.Branch
	if branch == "" {
		branch = dto.DefaultBranch()
		archive, err = s.fetcher.DownloadDefault(ctx, req.RepositoryID)
	} else {
		archive, err = s.fetcher.DownloadBranch(ctx, req.RepositoryID, branch)
	}
	if err != nil {
		return model.RepositoryResponse{}, err
	}

	artifact := index.RepositoryArtifact{
		ID:      req.RepositoryID,
		Name:    dto.Name,
		Branch:  branch,
		Archive: archive,
	}
	s.pool.Submit("repository:"+req.RepositoryID, func(ctx context.Context) {
		if _, err := s.indexer.Index(ctx, artifact); err != nil {
			s.log.Error("repository indexing failed",
				slog.String("repository_id", artifact.ID),
				slog.String("branch", artifact.Branch),
				slog.String("error", err.Error()))
		}
	})

	return model.RepositoryResponse{
		RepositoryID: req.RepositoryID,
		Branch:       branch,
		Status:       model.StatusAccepted,
	}, nil
}

// OverviewQuery searches repository overviews.
func (s *Repository) OverviewQuery(ctx context.Context, req model.QueryRequest) (model.OverviewResponse, error) {
	return s.retriever.OverviewQuery(ctx, req)
}

// ChunkQuery searches repository chunks.
func (s *Repository) ChunkQuery(ctx context.Context, req model.QueryRequest) (model.ChunkResponse, error) {
	return s.retriever.ChunkQuery(ctx, req)
}
