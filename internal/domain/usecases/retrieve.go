package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// DefaultTopK is the number of chunks retrieved when the caller asks for none.
const DefaultTopK = 10

// RetrieveUseCase finds stored chunks relevant to a query.
// Retrieved context is optional input to analysis, so Retrieve never fails.
type RetrieveUseCase struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	logger      *slog.Logger
}

type RetrieveOption func(*RetrieveUseCase)

// WithRetrieveLogger sets the logger.
func WithRetrieveLogger(logger *slog.Logger) RetrieveOption {
	return func(uc *RetrieveUseCase) {
		uc.logger = logger
	}
}

// NewRetrieveUseCase creates a RetrieveUseCase with injected dependencies.
func NewRetrieveUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	opts ...RetrieveOption,
) *RetrieveUseCase {
	uc := &RetrieveUseCase{
		embedder:    embedder,
		vectorStore: vectorStore,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	return uc
}

// Retrieve returns at most k results ranked by similarity. A blank query,
// an empty store or a failing embedder or store all give an empty result.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) []entities.QueryResult {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []entities.QueryResult{}
	}

	queryEmbedding, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		uc.logger.Warn("embedding query failed, continuing without context", "error", err)
		return []entities.QueryResult{}
	}

	results, err := uc.vectorStore.Search(ctx, queryEmbedding, k)
	if err != nil {
		uc.logger.Warn("searching knowledge store failed, continuing without context", "error", err)
		return []entities.QueryResult{}
	}
	if results == nil {
		results = []entities.QueryResult{}
	}

	uc.logger.Debug("retrieved context", "k", k, "results", len(results))
	return results
}

// FormatContext renders results as "From <filename>:" blocks for a prompt.
// An empty result renders as the empty string.
func FormatContext(results []entities.QueryResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = formatContextBlock(r)
	}
	return strings.Join(parts, "\n")
}

func formatContextBlock(r entities.QueryResult) string {
	return fmt.Sprintf("From %s:\n%s\n", r.Chunk.Filename(), r.Chunk.Content)
}
