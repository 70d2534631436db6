// Package container wires adapters and use cases from configuration.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/0xcro3dile/contractrag/internal/adapters/embedding"
	"github.com/0xcro3dile/contractrag/internal/adapters/extractor"
	"github.com/0xcro3dile/contractrag/internal/adapters/llm"
	"github.com/0xcro3dile/contractrag/internal/adapters/tokens"
	"github.com/0xcro3dile/contractrag/internal/adapters/vectordb"
	"github.com/0xcro3dile/contractrag/internal/config"
	"github.com/0xcro3dile/contractrag/internal/domain/chunker"
	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
	"github.com/0xcro3dile/contractrag/internal/domain/usecases"
)

// Container holds the application's dependencies.
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Extractor *extractor.Extractor
	Embedder  *embedding.Handle
	Store     ports.VectorStore
	LLM       ports.LLMService

	Ingest   *usecases.IngestUseCase
	Retrieve *usecases.RetrieveUseCase
	Analyze  *usecases.AnalyzeUseCase
	Corpus   *usecases.CorpusUseCase
}

type containerOptions struct {
	logger   *slog.Logger
	embedder ports.EmbeddingService
	store    ports.VectorStore
	llm      ports.LLMService
	tokens   ports.TokenCounter
}

// Option customizes construction, mostly for tests.
type Option func(*containerOptions)

// WithLogger replaces the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithEmbedder injects an embedding model instead of the configured one.
func WithEmbedder(embedder ports.EmbeddingService) Option {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithStore injects a vector store instead of the configured backend.
func WithStore(store ports.VectorStore) Option {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithLLM injects a generative model instead of the configured provider.
func WithLLM(service ports.LLMService) Option {
	return func(opts *containerOptions) {
		opts.llm = service
	}
}

// WithTokenCounter replaces the tiktoken counter.
func WithTokenCounter(counter ports.TokenCounter) Option {
	return func(opts *containerOptions) {
		opts.tokens = counter
	}
}

// New validates cfg and builds the container. The embedding model is not
// loaded until first use.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	splitter, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	// Embedder
	handle := embedding.NewHandle(cfg.Embedding.Dimension, embeddingLoader(cfg, options.embedder))

	// Store
	store := options.store
	if store == nil {
		store, err = newStore(ctx, cfg)
		if err != nil {
			handle.Release()
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
		}
	}
	if store.Dimensions() != handle.Dimensions() {
		handle.Release()
		closeStore(store)
		return nil, fmt.Errorf("%w: store dimension %d does not match embedding dimension %d",
			entities.ErrConfiguration, store.Dimensions(), handle.Dimensions())
	}

	// LLM
	llmService := options.llm
	if llmService == nil {
		llmService, err = newLLM(cfg)
		if err != nil {
			handle.Release()
			closeStore(store)
			return nil, fmt.Errorf("failed to create %s llm: %w", cfg.LLM.Provider, err)
		}
	}

	// TokenCounter
	counter := options.tokens
	if counter == nil {
		counter = tokens.New(logger)
	}

	retrieve := usecases.NewRetrieveUseCase(handle, store, usecases.WithRetrieveLogger(logger))

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Extractor: extractor.New(),
		Embedder:  handle,
		Store:     store,
		LLM:       llmService,
		Ingest: usecases.NewIngestUseCase(handle, store, splitter,
			usecases.WithIngestLogger(logger),
			usecases.WithEmbedBatchSize(cfg.Chunking.EmbedBatchSize),
		),
		Retrieve: retrieve,
		Analyze: usecases.NewAnalyzeUseCase(retrieve, llmService,
			usecases.WithAnalyzeLogger(logger),
			usecases.WithTopK(cfg.Retrieval.TopK),
			usecases.WithContextBudget(counter, cfg.Retrieval.MaxContextTokens),
		),
		Corpus: usecases.NewCorpusUseCase(store, logger),
	}

	logger.Info("container ready",
		"store", cfg.Store.Backend,
		"embedding", cfg.Embedding.Provider,
		"dimensions", cfg.Embedding.Dimension,
		"llm", cfg.LLM.Provider,
	)
	return c, nil
}

// Close releases the embedding model and the store.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.Embedder.Release(), closeStore(c.Store))
}

func embeddingLoader(cfg *config.Config, injected ports.EmbeddingService) embedding.Loader {
	return func(ctx context.Context) (ports.EmbeddingService, error) {
		if injected != nil {
			return injected, nil
		}
		switch cfg.Embedding.Provider {
		case config.ProviderOllama:
			return embedding.NewOllamaAdapter(cfg.OllamaBaseURL, cfg.Embedding.Model, cfg.Embedding.Dimension), nil
		case config.ProviderOpenAI:
			return embedding.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimension)
		default:
			return embedding.NewHashingEmbedder(cfg.Embedding.Dimension), nil
		}
	}
}

func newStore(ctx context.Context, cfg *config.Config) (ports.VectorStore, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		return vectordb.NewPostgresStore(ctx, cfg.Store.DatabaseURL, cfg.Embedding.Dimension)
	case config.StoreMemory:
		return vectordb.NewInMemoryStore(cfg.Embedding.Dimension), nil
	default:
		return vectordb.NewSQLiteStore(cfg.DataDir, cfg.Embedding.Dimension)
	}
}

func newLLM(cfg *config.Config) (ports.LLMService, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAILLMAdapter(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.LLM.Model)
	default:
		return llm.NewOllamaLLMAdapter(cfg.OllamaBaseURL, cfg.LLM.Model), nil
	}
}

func closeStore(store ports.VectorStore) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
