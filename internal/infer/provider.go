package infer

import (
	"context"
	"sync"
)

// Provider owns the process-wide inference client. The client is built
// and warmed on first use; afterwards all accessors return the same
// read-only instance, safe for concurrent callers.
type Provider struct {
	cfg       ClientConfig
	cacheSize int

	once     sync.Once
	client   *Client
	embedder Embedder
	err      error
}

// NewProvider creates a lazy provider. No network traffic happens until
// the first accessor call.
func NewProvider(cfg ClientConfig, cacheSize int) *Provider {
	return &Provider{cfg: cfg, cacheSize: cacheSize}
}

func (p *Provider) init(ctx context.Context) {
	p.once.Do(func() {
		client, err := NewClient(ctx, p.cfg)
		if err != nil {
			p.err = err
			return
		}
		p.client = client
		p.embedder = NewCachedEmbedder(client, p.cacheSize)
	})
}

// Embedder returns the warmed, cache-wrapped embedder.
func (p *Provider) Embedder(ctx context.Context) (Embedder, error) {
	p.init(ctx)
	return p.embedder, p.err
}

// CrossEncoder returns the warmed cross-encoder.
func (p *Provider) CrossEncoder(ctx context.Context) (CrossEncoder, error) {
	p.init(ctx)
	return p.client, p.err
}

// Seq2Seq returns the warmed seq2seq summarization model.
func (p *Provider) Seq2Seq(ctx context.Context) (Seq2Seq, error) {
	p.init(ctx)
	return p.client, p.err
}
