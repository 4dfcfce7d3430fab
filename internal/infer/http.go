package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/manak-ai/stratum/internal/apperr"
)

// ClientConfig configures the HTTP inference client.
type ClientConfig struct {
	// BaseURL is the inference service endpoint.
	BaseURL string

	// EmbedModel, RerankModel and SummarizeModel select the served models.
	EmbedModel     string
	RerankModel    string
	SummarizeModel string

	// Device is an advisory placement tag forwarded to the backend.
	Device string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// BatchSize caps inputs per embed request. Defaults to DefaultBatchSize.
	BatchSize int

	// PoolSize bounds idle connections. Defaults to 4.
	PoolSize int
}

// Client talks to the HTTP inference service. It implements Embedder,
// CrossEncoder, and Seq2Seq.
type Client struct {
	httpClient *http.Client
	config     ClientConfig
	dims       int
}

var (
	_ Embedder     = (*Client)(nil)
	_ CrossEncoder = (*Client)(nil)
	_ Seq2Seq      = (*Client)(nil)
)

type embedRequest struct {
	Model  string   `json:"model"`
	Device string   `json:"device,omitempty"`
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dims       int         `json:"dims"`
}

type rerankRequest struct {
	Model string   `json:"model"`
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

type summarizeRequest struct {
	Model      string `json:"model"`
	Text       string `json:"text"`
	MaxLength  int    `json:"max_length"`
	MinLength  int    `json:"min_length"`
	Truncation bool   `json:"truncation"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// NewClient creates an inference client and runs a warm-up embedding so
// the backend preloads weights before the first real request.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		// Per-request timeouts come from context so the client timeout
		// stays unset.
		httpClient: &http.Client{Transport: transport},
		config:     cfg,
	}

	// Warm-up pass: one small embedding preloads the model and reports
	// the vector dimension.
	warmCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	vecs, err := c.embedBatch(warmCtx, []string{"warm up"})
	if err != nil {
		return nil, fmt.Errorf("inference warm-up: %w", err)
	}
	if len(vecs) > 0 {
		c.dims = len(vecs[0])
	}
	slog.Info("inference client ready",
		slog.String("base_url", cfg.BaseURL),
		slog.String("embed_model", cfg.EmbedModel),
		slog.Int("dims", c.dims))

	return c, nil
}

// Embed generates the embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.ModelInfer(apperr.CodeEmbedFailed, "empty embedding response", nil)
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting into
// backend-sized batches.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	req := embedRequest{Model: c.config.EmbedModel, Device: c.config.Device, Inputs: texts}
	if err := c.post(ctx, "/embed", req, &resp); err != nil {
		return nil, apperr.ModelInfer(apperr.CodeEmbedFailed, "embed request failed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, apperr.ModelInfer(apperr.CodeEmbedFailed,
			fmt.Sprintf("embedding count mismatch: want %d, got %d", len(texts), len(resp.Embeddings)), nil)
	}
	return resp.Embeddings, nil
}

// Score returns one relevance score per text.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}
	var resp rerankResponse
	req := rerankRequest{Model: c.config.RerankModel, Query: query, Texts: texts}
	if err := c.post(ctx, "/rerank", req, &resp); err != nil {
		return nil, apperr.ModelInfer(apperr.CodeRerankFailed, "rerank request failed", err)
	}
	if len(resp.Scores) != len(texts) {
		return nil, apperr.ModelInfer(apperr.CodeRerankFailed,
			fmt.Sprintf("score count mismatch: want %d, got %d", len(texts), len(resp.Scores)), nil)
	}
	return resp.Scores, nil
}

// Generate produces an abstractive summary via the seq2seq model.
func (c *Client) Generate(ctx context.Context, text string, opts GenerateOptions) (string, error) {
	var resp summarizeResponse
	req := summarizeRequest{
		Model:      c.config.SummarizeModel,
		Text:       text,
		MaxLength:  opts.MaxLength,
		MinLength:  opts.MinLength,
		Truncation: opts.Truncation,
	}
	if err := c.post(ctx, "/summarize", req, &resp); err != nil {
		return "", apperr.ModelInfer(apperr.CodeSummarizeFailed, "summarize request failed", err)
	}
	return resp.Summary, nil
}

// Dimensions returns the embedding dimension observed during warm-up.
func (c *Client) Dimensions() int {
	return c.dims
}

// ModelName returns the embedding model identifier.
func (c *Client) ModelName() string {
	return c.config.EmbedModel
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
