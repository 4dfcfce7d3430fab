// Package config loads the service configuration from YAML with
// ${models.*} placeholder expansion and environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the optional prefix for environment overrides.
// STRATUM_SERVER_PORT=9090 and SERVER_PORT=9090 both set server.port.
const EnvPrefix = "STRATUM_"

// DefaultTimeout is the default timeout for outbound HTTP calls.
const DefaultTimeout = 30 * time.Second

// searchPaths are the well-known relative locations tried when
// CONFIG_PATH is not set.
var searchPaths = []string{
	"config.yaml",
	"configs/stratum.yaml",
	"configs/config.yaml",
	"/etc/stratum/config.yaml",
}

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Models     ModelsConfig     `yaml:"models"`
	Inference  InferenceConfig  `yaml:"inference"`
	Document   DocumentConfig   `yaml:"document"`
	Repository RepositoryConfig `yaml:"repository"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Clients    ClientsConfig    `yaml:"clients"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig configures the HTTP ingress.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// ModelsConfig names the models served by the inference service.
// Values here are the expansion source for ${models.*} placeholders.
type ModelsConfig struct {
	Embedder     ModelRef `yaml:"embedder"`
	CrossEncoder ModelRef `yaml:"cross_encoder"`
	Summarizer   ModelRef `yaml:"summarizer"`
}

// ModelRef identifies one model and its device placement.
type ModelRef struct {
	Name   string `yaml:"name"`
	Device string `yaml:"device"`
}

// InferenceConfig configures the HTTP inference backend.
type InferenceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DocumentConfig configures the document pipeline.
type DocumentConfig struct {
	Chunk     ChunkConfig     `yaml:"chunk"`
	Overview  OverviewConfig  `yaml:"overview"`
	Retriever RetrieverConfig `yaml:"retriever"`
}

// RepositoryConfig configures the repository pipeline.
type RepositoryConfig struct {
	Chunk     ChunkConfig        `yaml:"chunk"`
	Overview  RepoOverviewConfig `yaml:"overview"`
	Retriever RetrieverConfig    `yaml:"retriever"`
}

// ChunkConfig holds chunker window parameters. For documents the unit is
// words; for repositories it is characters.
type ChunkConfig struct {
	Size    int `yaml:"chunk_words_size"`
	Overlap int `yaml:"chunk_overlap"`
}

// OverviewConfig configures document overview generation.
type OverviewConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// RepoOverviewConfig configures repository overview generation.
type RepoOverviewConfig struct {
	ReadmeMaxChars int `yaml:"readme_max_chars"`
	TopFiles       int `yaml:"top_files"`
	PerFileLimit   int `yaml:"per_file_limit"`
}

// RetrieverConfig configures the multi-stage retriever.
type RetrieverConfig struct {
	RerankTopK       int `yaml:"rerank_top_k"`
	FinalSummaryTopK int `yaml:"final_summary_top_k"`
}

// SummarizerConfig configures the summarizer strategies.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
	MaxLength    int `yaml:"max_length"`
	MinLength    int `yaml:"min_length"`
}

// ClientsConfig configures the outbound service clients.
type ClientsConfig struct {
	DMS      HTTPClientConfig `yaml:"dms"`
	RMS      HTTPClientConfig `yaml:"rms"`
	Identity IdentityConfig   `yaml:"identity"`
}

// HTTPClientConfig configures one outbound HTTP client.
type HTTPClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// IdentityConfig configures the token-issuing identity provider.
type IdentityConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// KafkaConfig configures the tool-provider publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Enabled bool     `yaml:"enabled"`
}

// IndexingConfig configures the indexing worker pool.
type IndexingConfig struct {
	Workers int `yaml:"workers"`
}

// StorageConfig locates the collection snapshots on disk.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 10, MaxFiles: 5},
		Inference: InferenceConfig{
			BaseURL: "http://localhost:8089",
			Timeout: DefaultTimeout,
		},
		Document: DocumentConfig{
			Chunk:     ChunkConfig{Size: 200, Overlap: 50},
			Overview:  OverviewConfig{MaxSentences: 5},
			Retriever: RetrieverConfig{RerankTopK: 10, FinalSummaryTopK: 10},
		},
		Repository: RepositoryConfig{
			Chunk:     ChunkConfig{Size: 1200, Overlap: 200},
			Overview:  RepoOverviewConfig{ReadmeMaxChars: 20000, TopFiles: 10, PerFileLimit: 5000},
			Retriever: RetrieverConfig{RerankTopK: 10, FinalSummaryTopK: 10},
		},
		Summarizer: SummarizerConfig{MaxSentences: 5, MaxLength: 150, MinLength: 30},
		Clients: ClientsConfig{
			DMS: HTTPClientConfig{Timeout: DefaultTimeout},
			RMS: HTTPClientConfig{Timeout: DefaultTimeout},
		},
		Indexing: IndexingConfig{Workers: 4},
		Storage:  StorageConfig{Dir: "data"},
	}
}

// Load reads configuration from CONFIG_PATH or the well-known search
// paths, expands ${models.*} placeholders, applies environment overrides,
// and validates the result. A missing file yields defaults plus overrides.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		for _, p := range searchPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	var raw []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		raw = data
	}

	return Parse(raw, os.Environ())
}

// Parse builds a Config from raw YAML and an environment snapshot.
func Parse(raw []byte, environ []string) (*Config, error) {
	tree := map[string]any{}
	if len(raw) > 0 {
		expanded, err := expandPlaceholders(raw)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(expanded, &tree); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(tree, environ)

	merged, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(merged, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Document.Chunk.Size <= 0 {
		return fmt.Errorf("document.chunk.chunk_words_size must be positive")
	}
	if c.Repository.Chunk.Size <= 0 {
		return fmt.Errorf("repository.chunk.chunk_words_size must be positive")
	}
	if c.Indexing.Workers <= 0 {
		return fmt.Errorf("indexing.workers must be positive")
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// expandPlaceholders replaces ${models.<key>} references with values from
// the models section of the same document. Expansion happens before the
// typed decode so placeholders can appear anywhere in the file.
func expandPlaceholders(raw []byte) ([]byte, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	out := placeholderPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		key := placeholderPattern.FindSubmatch(match)[1]
		if val, ok := lookupPath(tree, strings.Split(string(key), ".")); ok {
			return []byte(fmt.Sprintf("%v", val))
		}
		return match
	})
	return out, nil
}

// lookupPath walks a nested map by key path.
func lookupPath(tree map[string]any, path []string) (any, bool) {
	var cur any = tree
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// applyEnvOverrides applies A_B_C=42 style overrides onto the tree,
// setting a.b.c to the value parsed as a YAML literal. Keys that contain
// underscores themselves (chunk_words_size) are matched greedily against
// existing keys at each level.
func applyEnvOverrides(tree map[string]any, environ []string) {
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			continue
		}
		key := strings.TrimPrefix(name, EnvPrefix)
		segments := strings.Split(strings.ToLower(key), "_")
		if len(segments) < 2 {
			continue
		}
		setPath(tree, segments, parseYAMLLiteral(value))
	}
}

// setPath descends the tree preferring the longest joined key that
// already exists at each level, creating plain nested keys otherwise.
func setPath(tree map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}

	for n := len(segments); n >= 1; n-- {
		key := strings.Join(segments[:n], "_")
		existing, ok := tree[key]
		if !ok {
			continue
		}
		if n == len(segments) {
			tree[key] = value
			return
		}
		sub, ok := existing.(map[string]any)
		if !ok {
			continue
		}
		setPath(sub, segments[n:], value)
		return
	}

	if len(segments) == 1 {
		tree[segments[0]] = value
		return
	}
	sub, ok := tree[segments[0]].(map[string]any)
	if !ok {
		sub = map[string]any{}
		tree[segments[0]] = sub
	}
	setPath(sub, segments[1:], value)
}

// parseYAMLLiteral parses an override value as a YAML scalar so numbers
// and booleans keep their types.
func parseYAMLLiteral(value string) any {
	var out any
	if err := yaml.Unmarshal([]byte(value), &out); err != nil {
		return value
	}
	return out
}
