// Command grounder ingests documentation sources into a hybrid vector
// index and answers questions against them with citations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	promptfile "github.com/custodia-labs/grounder/internal/adapters/driven/config/file"
	embeddingopenai "github.com/custodia-labs/grounder/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/custodia-labs/grounder/internal/adapters/driven/llm/openai"
	snapshotfile "github.com/custodia-labs/grounder/internal/adapters/driven/snapshot/file"
	"github.com/custodia-labs/grounder/internal/adapters/driven/sparse/bm25"
	"github.com/custodia-labs/grounder/internal/adapters/driven/tokenizer/tiktoken"
	"github.com/custodia-labs/grounder/internal/adapters/driven/vector/pinecone"
	"github.com/custodia-labs/grounder/internal/adapters/driven/vector/sqlite"
	"github.com/custodia-labs/grounder/internal/adapters/driving/cli"
	"github.com/custodia-labs/grounder/internal/config"
	"github.com/custodia-labs/grounder/internal/connectors/localfile"
	"github.com/custodia-labs/grounder/internal/connectors/web"
	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/core/services"
	"github.com/custodia-labs/grounder/internal/logger"
	"github.com/custodia-labs/grounder/internal/normalisers/text"
	"github.com/custodia-labs/grounder/internal/postprocessors/chunker"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	// Missing .env is fine; the config file and environment still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetSetup(func(configPath string) (cli.Services, error) {
		return buildServices(ctx, configPath)
	})

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildServices wires every adapter behind the core's ports from the
// loaded configuration.
func buildServices(ctx context.Context, configPath string) (cli.Services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cli.Services{}, err
	}

	embedding, err := embeddingopenai.New(embeddingopenai.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return cli.Services{}, fmt.Errorf("embedding service: %w", err)
	}

	completion, err := llmopenai.New(llmopenai.Config{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Timeout:     cfg.CompletionTimeout(),
		Temperature: cfg.Completion.Temperature,
	})
	if err != nil {
		return cli.Services{}, fmt.Errorf("completion service: %w", err)
	}

	tokenizer, err := tiktoken.NewForModel(completion.ModelName())
	if err != nil {
		return cli.Services{}, fmt.Errorf("tokenizer: %w", err)
	}

	vectorStore, err := buildVectorStore(cfg)
	if err != nil {
		return cli.Services{}, fmt.Errorf("vector store: %w", err)
	}
	if err := vectorStore.EnsureIndex(ctx, embedding.Dimensions()); err != nil {
		return cli.Services{}, fmt.Errorf("vector store: %w", err)
	}

	snapshots, err := snapshotfile.New(snapshotfile.Config{
		Root:      cfg.Ingestion.SnapshotDir,
		AuditRoot: cfg.Ingestion.AuditDir,
	})
	if err != nil {
		return cli.Services{}, fmt.Errorf("snapshot store: %w", err)
	}

	prompts, err := promptfile.New(cfg.Answer.PromptFile)
	if err != nil {
		return cli.Services{}, fmt.Errorf("prompt store: %w", err)
	}

	registry := services.NewConnectorRegistry()
	registry.Register(domain.SourceTypeLocalFile, localfile.New)
	registry.Register(domain.SourceTypeSitemap, web.New)

	sparse := bm25.New(bm25.Config{})

	ingestor := services.NewIngestService(
		registry,
		text.New(),
		chunker.New(tokenizer,
			chunker.WithGoalTokens(cfg.Ingestion.GoalTokens),
			chunker.WithMaxTokens(cfg.Ingestion.MaxTokens)),
		tokenizer,
		embedding,
		sparse,
		vectorStore,
		snapshots,
		services.IngestConfig{
			Namespace:       cfg.Namespace,
			MinPageTokens:   cfg.Ingestion.MinPageTokens,
			UpsertBatchSize: cfg.VectorStore.BatchSize,
			Retries:         cfg.Ingestion.Retries,
		},
	)

	retriever := services.NewRetrievalService(embedding, sparse, vectorStore,
		services.RetrievalConfig{
			Namespace: cfg.Namespace,
			TopKHard:  cfg.Retrieval.TopKHard,
			TopKSoft:  cfg.Retrieval.TopKSoft,
		})

	pruner := services.NewPruner(tokenizer, services.PrunerConfig{
		TokenBudget:  cfg.Pruning.TokenBudget,
		MaxDocs:      cfg.Pruning.MaxDocs,
		MaxDocTokens: cfg.Pruning.MaxDocTokens,
	})

	answerer := services.NewAnswerService(retriever, pruner, completion, prompts,
		services.AnswerConfig{
			MaxAnswerTokens: cfg.Answer.MaxAnswerTokens,
			MaxConcurrent:   cfg.Answer.MaxConcurrent,
		})

	logger.Debug("wired %s backend, namespace %s, %d sources",
		cfg.VectorStore.Backend, cfg.Namespace, len(cfg.Sources))

	return cli.Services{
		Ingestor:         ingestor,
		Answerer:         answerer,
		VectorStore:      vectorStore,
		ConnectorFactory: registry,
		Config:           cfg,
		Version:          version,
	}, nil
}

func buildVectorStore(cfg *config.Config) (driven.VectorStore, error) {
	switch cfg.VectorStore.Backend {
	case config.BackendPinecone:
		return pinecone.New(pinecone.Config{
			APIKey:    cfg.VectorStore.Pinecone.APIKey,
			IndexHost: cfg.VectorStore.Pinecone.IndexHost,
		})
	default:
		return sqlite.New(sqlite.Config{
			Path:  cfg.VectorStore.SQLite.Path,
			Alpha: cfg.VectorStore.SQLite.Alpha,
		})
	}
}
