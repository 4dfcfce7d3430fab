package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/manak-ai/stratum/internal/chunk"
	"github.com/manak-ai/stratum/internal/client"
	"github.com/manak-ai/stratum/internal/config"
	"github.com/manak-ai/stratum/internal/index"
	"github.com/manak-ai/stratum/internal/infer"
	"github.com/manak-ai/stratum/internal/overview"
	"github.com/manak-ai/stratum/internal/retrieve"
	"github.com/manak-ai/stratum/internal/store"
	"github.com/manak-ai/stratum/internal/summarize"
)

// Container builds and owns the process-wide singletons. Each facade is
// constructed lazily on first use; the first construction warms the
// inference models.
type Container struct {
	cfg      *config.Config
	log      *slog.Logger
	provider *infer.Provider
	coord    *store.Coordinator
	pool     *Pool

	tokensOnce sync.Once
	tokens     client.TokenProvider

	docOnce sync.Once
	doc     *Document
	docErr  error

	repoOnce sync.Once
	repo     *Repository
	repoErr  error
}

func NewContainer(cfg *config.Config, log *slog.Logger) *Container {
	provider := infer.NewProvider(infer.ClientConfig{
		BaseURL:        cfg.Inference.BaseURL,
		EmbedModel:     cfg.Models.Embedder.Name,
		RerankModel:    cfg.Models.CrossEncoder.Name,
		SummarizeModel: cfg.Models.Summarizer.Name,
		Device:         cfg.Models.Embedder.Device,
		Timeout:        cfg.Inference.Timeout,
	}, infer.DefaultEmbeddingCacheSize)

	return &Container{
		cfg:      cfg,
		log:      log,
		provider: provider,
		coord:    store.NewCoordinator(cfg.Storage.Dir),
		pool:     NewPool(cfg.Indexing.Workers, log),
	}
}

// Store exposes the collection coordinator for shutdown snapshots.
func (c *Container) Store() *store.Coordinator { return c.coord }

// Pool exposes the indexing worker pool for shutdown draining.
func (c *Container) Pool() *Pool { return c.pool }

// Documents returns the document facade, building it on first call.
func (c *Container) Documents(ctx context.Context) (*Document, error) {
	c.docOnce.Do(func() {
		c.doc, c.docErr = c.buildDocuments(ctx)
	})
	return c.doc, c.docErr
}

// Repositories returns the repository facade, building it on first call.
func (c *Container) Repositories(ctx context.Context) (*Repository, error) {
	c.repoOnce.Do(func() {
		c.repo, c.repoErr = c.buildRepositories(ctx)
	})
	return c.repo, c.repoErr
}

func (c *Container) buildDocuments(ctx context.Context) (*Document, error) {
	embedder, encoder, seq2seq, err := c.models(ctx)
	if err != nil {
		return nil, err
	}
	overviews, err := c.coord.Collection(store.DocumentOverview)
	if err != nil {
		return nil, err
	}
	chunks, err := c.coord.Collection(store.DocumentChunk)
	if err != nil {
		return nil, err
	}

	hybrid, hierarchical := c.summarizers(embedder, seq2seq)
	indexer := index.NewDocumentIndexer(
		chunk.NewDocumentChunker(c.cfg.Document.Chunk.Size, c.cfg.Document.Chunk.Overlap),
		overview.NewDocumentBuilder(hierarchical, c.log),
		store.NewWriter(overviews, embedder),
		store.NewWriter(chunks, embedder),
		c.log,
	)
	retriever := retrieve.NewMultiStage(overviews, chunks, chunk.MetaDocID,
		embedder, encoder, hybrid,
		c.cfg.Document.Retriever.RerankTopK, c.cfg.Document.Retriever.FinalSummaryTopK, c.log)

	dms := client.NewDMS(c.cfg.Clients.DMS.BaseURL, c.tokenProvider(), c.cfg.Clients.DMS.Timeout)
	return NewDocument(dms, indexer, retriever, c.pool, c.log), nil
}

func (c *Container) buildRepositories(ctx context.Context) (*Repository, error) {
	embedder, encoder, seq2seq, err := c.models(ctx)
	if err != nil {
		return nil, err
	}
	overviews, err := c.coord.Collection(store.RepositoryOverview)
	if err != nil {
		return nil, err
	}
	chunks, err := c.coord.Collection(store.RepositoryChunk)
	if err != nil {
		return nil, err
	}

	hybrid, hierarchical := c.summarizers(embedder, seq2seq)
	ovCfg := c.cfg.Repository.Overview
	indexer := index.NewRepositoryIndexer(
		chunk.NewRepositoryChunker(c.cfg.Repository.Chunk.Size, c.cfg.Repository.Chunk.Overlap),
		overview.NewRepositoryBuilder(hierarchical, ovCfg.ReadmeMaxChars, ovCfg.TopFiles, ovCfg.PerFileLimit, c.log),
		store.NewWriter(overviews, embedder),
		store.NewWriter(chunks, embedder),
		chunks,
		c.log,
	)
	retriever := retrieve.NewMultiStage(overviews, chunks, chunk.MetaRepositoryID,
		embedder, encoder, hybrid,
		c.cfg.Repository.Retriever.RerankTopK, c.cfg.Repository.Retriever.FinalSummaryTopK, c.log)

	rms := client.NewRMS(c.cfg.Clients.RMS.BaseURL, c.tokenProvider(), c.cfg.Clients.RMS.Timeout)
	return NewRepository(rms, indexer, retriever, c.pool, c.log), nil
}

func (c *Container) models(ctx context.Context) (infer.Embedder, infer.CrossEncoder, infer.Seq2Seq, error) {
	embedder, err := c.provider.Embedder(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	encoder, err := c.provider.CrossEncoder(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	seq2seq, err := c.provider.Seq2Seq(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return embedder, encoder, seq2seq, nil
}

func (c *Container) summarizers(embedder infer.Embedder, seq2seq infer.Seq2Seq) (*summarize.Hybrid, *summarize.Hierarchical) {
	sc := c.cfg.Summarizer
	extractive := summarize.NewExtractive(embedder, sc.MaxSentences)
	abstractive := summarize.NewAbstractive(seq2seq, sc.MaxLength, sc.MinLength)
	hybrid := summarize.NewHybrid(extractive, abstractive)
	return hybrid, summarize.NewHierarchical(extractive, hybrid)
}

func (c *Container) tokenProvider() client.TokenProvider {
	c.tokensOnce.Do(func() {
		id := c.cfg.Clients.Identity
		if id.Issuer == "" {
			c.tokens = client.NoAuth{}
			return
		}
		c.tokens = client.NewKeycloak(id.Issuer, id.ClientID, id.ClientSecret, client.DefaultTimeout)
	})
	return c.tokens
}
