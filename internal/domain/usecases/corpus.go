package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// CorpusUseCase exposes knowledge base administration.
type CorpusUseCase struct {
	vectorStore ports.VectorStore
	logger      *slog.Logger
}

// NewCorpusUseCase creates a CorpusUseCase. A nil logger uses slog.Default.
func NewCorpusUseCase(vectorStore ports.VectorStore, logger *slog.Logger) *CorpusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusUseCase{vectorStore: vectorStore, logger: logger}
}

// Stats reports the corpus size.
func (uc *CorpusUseCase) Stats(ctx context.Context) (entities.CorpusStats, error) {
	stats, err := uc.vectorStore.Stats(ctx)
	if err != nil {
		return entities.CorpusStats{}, fmt.Errorf("reading corpus stats: %w", err)
	}
	return stats, nil
}

// Clear removes every stored chunk. Later searches return nothing until
// the next ingest.
func (uc *CorpusUseCase) Clear(ctx context.Context) error {
	if err := uc.vectorStore.Clear(ctx); err != nil {
		return fmt.Errorf("clearing corpus: %w", err)
	}
	uc.logger.Info("knowledge base cleared")
	return nil
}
