// Package config loads pipeline configuration from a TOML file with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/grounder/internal/core/domain"
)

// DefaultPath is used when no config file is given on the command line.
const DefaultPath = "grounder.toml"

// Environment variables overriding file values. Credentials belong in
// the environment, not the config file.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvPineconeKey = "PINECONE_API_KEY"
)

// Vector store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPinecone = "pinecone"
)

// Config is the full pipeline configuration. Loaded once at startup
// and treated as immutable afterwards.
type Config struct {
	// Namespace partitions vectors, e.g. "prod" or "staging".
	Namespace string `toml:"namespace"`

	Embedding   EmbeddingConfig   `toml:"embedding"`
	Completion  CompletionConfig  `toml:"completion"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Ingestion   IngestionConfig   `toml:"ingestion"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Pruning     PruningConfig     `toml:"pruning"`
	Answer      AnswerConfig      `toml:"answer"`

	// Sources are the corpora to ingest.
	Sources []SourceConfig `toml:"sources"`
}

// EmbeddingConfig configures the dense embedding provider.
type EmbeddingConfig struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	RequestsPerSecond int    `toml:"requests_per_second"`
}

// CompletionConfig configures the answer model.
type CompletionConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float32 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// VectorStoreConfig selects and configures the vector backend.
type VectorStoreConfig struct {
	// Backend is "sqlite" or "pinecone".
	Backend string `toml:"backend"`

	// BatchSize is the upsert batch size.
	BatchSize int `toml:"batch_size"`

	SQLite   SQLiteConfig   `toml:"sqlite"`
	Pinecone PineconeConfig `toml:"pinecone"`
}

// SQLiteConfig configures the local backend.
type SQLiteConfig struct {
	Path  string  `toml:"path"`
	Alpha float64 `toml:"alpha"`
}

// PineconeConfig configures the hosted backend.
type PineconeConfig struct {
	APIKey    string `toml:"api_key"`
	IndexHost string `toml:"index_host"`
}

// IngestionConfig configures chunking and change detection.
type IngestionConfig struct {
	// MinPageTokens drops pages shorter than this after normalisation.
	MinPageTokens int `toml:"min_page_tokens"`

	// Retries is the number of retries after a failed source run.
	Retries int `toml:"retries"`

	// GoalTokens and MaxTokens bound chunk sizes.
	GoalTokens int `toml:"goal_tokens"`
	MaxTokens  int `toml:"max_tokens"`

	// SnapshotDir holds the chunk snapshots used for change detection.
	SnapshotDir string `toml:"snapshot_dir"`

	// AuditDir, when set, receives replaced snapshots.
	AuditDir string `toml:"audit_dir"`
}

// RetrievalConfig configures the per-class top-k fetches.
type RetrievalConfig struct {
	TopKHard int `toml:"top_k_hard"`
	TopKSoft int `toml:"top_k_soft"`
}

// PruningConfig bounds the assembled context.
type PruningConfig struct {
	TokenBudget  int `toml:"token_budget"`
	MaxDocs      int `toml:"max_docs"`
	MaxDocTokens int `toml:"max_doc_tokens"`
}

// AnswerConfig configures answering.
type AnswerConfig struct {
	MaxAnswerTokens int `toml:"max_answer_tokens"`
	MaxConcurrent   int `toml:"max_concurrent"`

	// PromptFile overrides the built-in prompt skeleton.
	PromptFile string `toml:"prompt_file"`
}

// SourceConfig describes one corpus in the file.
type SourceConfig struct {
	Resource string            `toml:"resource"`
	Type     string            `toml:"type"`
	Domain   string            `toml:"domain"`
	DocType  string            `toml:"doc_type"`
	Config   map[string]string `toml:"config"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = BackendSQLite
	}
	if c.VectorStore.BatchSize == 0 {
		c.VectorStore.BatchSize = 64
	}
	if c.VectorStore.SQLite.Path == "" {
		c.VectorStore.SQLite.Path = "grounder.db"
	}
	if c.Ingestion.MinPageTokens == 0 {
		c.Ingestion.MinPageTokens = 15
	}
	if c.Ingestion.Retries == 0 {
		c.Ingestion.Retries = 2
	}
	if c.Ingestion.GoalTokens == 0 {
		c.Ingestion.GoalTokens = 512
	}
	if c.Ingestion.MaxTokens == 0 {
		c.Ingestion.MaxTokens = 768
	}
	if c.Ingestion.SnapshotDir == "" {
		c.Ingestion.SnapshotDir = "snapshots"
	}
	if c.Retrieval.TopKHard == 0 {
		c.Retrieval.TopKHard = 3
	}
	if c.Retrieval.TopKSoft == 0 {
		c.Retrieval.TopKSoft = 8
	}
	if c.Pruning.TokenBudget == 0 {
		c.Pruning.TokenBudget = 3000
	}
	if c.Pruning.MaxDocs == 0 {
		c.Pruning.MaxDocs = 8
	}
	if c.Pruning.MaxDocTokens == 0 {
		c.Pruning.MaxDocTokens = 1200
	}
	if c.Answer.MaxAnswerTokens == 0 {
		c.Answer.MaxAnswerTokens = 1024
	}
	if c.Answer.MaxConcurrent == 0 {
		c.Answer.MaxConcurrent = 4
	}
	if c.Completion.TimeoutSeconds == 0 {
		c.Completion.TimeoutSeconds = 120
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
		if c.Completion.APIKey == "" {
			c.Completion.APIKey = key
		}
	}
	if key := os.Getenv(EnvPineconeKey); key != "" && c.VectorStore.Pinecone.APIKey == "" {
		c.VectorStore.Pinecone.APIKey = key
	}
}

func (c *Config) validate() error {
	if c.VectorStore.Backend != BackendSQLite && c.VectorStore.Backend != BackendPinecone {
		return fmt.Errorf("config: unknown vector store backend %q", c.VectorStore.Backend)
	}
	if c.VectorStore.Backend == BackendPinecone && c.VectorStore.Pinecone.IndexHost == "" {
		return fmt.Errorf("config: vector_store.pinecone.index_host is required")
	}
	if c.Ingestion.GoalTokens > c.Ingestion.MaxTokens {
		return fmt.Errorf("config: ingestion.goal_tokens (%d) exceeds max_tokens (%d)",
			c.Ingestion.GoalTokens, c.Ingestion.MaxTokens)
	}

	for i, src := range c.Sources {
		if src.Resource == "" {
			return fmt.Errorf("config: sources[%d]: resource is required", i)
		}
		if src.Type == "" {
			return fmt.Errorf("config: sources[%d] %s: type is required", i, src.Resource)
		}
		if !domain.DocType(src.DocType).Valid() {
			return fmt.Errorf("config: sources[%d] %s: invalid doc_type %q", i, src.Resource, src.DocType)
		}
	}
	return nil
}

// CompletionTimeout returns the completion timeout as a duration.
func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.Completion.TimeoutSeconds) * time.Second
}

// DomainSources converts the configured sources to domain values.
func (c *Config) DomainSources() []domain.Source {
	out := make([]domain.Source, len(c.Sources))
	for i, src := range c.Sources {
		out[i] = domain.Source{
			Resource: src.Resource,
			Type:     domain.SourceType(src.Type),
			Domain:   src.Domain,
			DocType:  domain.DocType(src.DocType),
			Config:   src.Config,
		}
	}
	return out
}

// SourceByResource finds one configured source by its resource name.
func (c *Config) SourceByResource(resource string) (domain.Source, error) {
	for _, src := range c.DomainSources() {
		if src.Resource == resource {
			return src, nil
		}
	}
	return domain.Source{}, fmt.Errorf("source %q: %w", resource, domain.ErrNotFound)
}
