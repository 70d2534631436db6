// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/contractrag/internal/domain/chunker"
	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// DefaultEmbedBatchSize bounds how many chunks go to the embedder per call.
const DefaultEmbedBatchSize = 64

// IngestUseCase handles document ingestion into the vector store.
type IngestUseCase struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	splitter    *chunker.Splitter
	batchSize   int
	logger      *slog.Logger
}

type IngestOption func(*IngestUseCase)

// WithIngestLogger sets the logger.
func WithIngestLogger(logger *slog.Logger) IngestOption {
	return func(uc *IngestUseCase) {
		uc.logger = logger
	}
}

// WithEmbedBatchSize overrides DefaultEmbedBatchSize.
func WithEmbedBatchSize(n int) IngestOption {
	return func(uc *IngestUseCase) {
		if n > 0 {
			uc.batchSize = n
		}
	}
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	splitter *chunker.Splitter,
	opts ...IngestOption,
) *IngestUseCase {
	uc := &IngestUseCase{
		embedder:    embedder,
		vectorStore: vectorStore,
		splitter:    splitter,
		batchSize:   DefaultEmbedBatchSize,
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

// Ingest chunks, embeds and stores a document and returns the number of
// chunks added. The batch is all or nothing: any failure returns an
// *entities.IngestionError and the store is unchanged.
//
// A missing ID is generated and a missing type is inferred from the name.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) (int, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Type == "" {
		doc.Type = entities.InferDocumentType(doc.Name)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if strings.TrimSpace(doc.Content) == "" {
		return 0, &entities.IngestionError{DocumentID: doc.ID, Err: entities.ErrEmptyDocument}
	}

	chunks := uc.chunkDocument(doc)

	if err := uc.embedChunks(ctx, chunks); err != nil {
		return 0, &entities.IngestionError{DocumentID: doc.ID, ChunkCount: len(chunks), Err: err}
	}

	if err := uc.vectorStore.Store(ctx, chunks); err != nil {
		return 0, &entities.IngestionError{DocumentID: doc.ID, ChunkCount: len(chunks), Err: err}
	}

	uc.logger.Info("document ingested",
		"document_id", doc.ID,
		"name", doc.Name,
		"type", doc.Type,
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// chunkDocument materializes the splitter's segments as chunks.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.Chunk {
	var chunks []entities.Chunk
	for seg := range uc.splitter.Split(doc.Content) {
		chunks = append(chunks, entities.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Content:    seg.Text,
			Index:      seg.Index,
		})
	}

	total := strconv.Itoa(len(chunks))
	for i := range chunks {
		chunks[i].Metadata = map[string]string{
			entities.MetaDocumentType: string(doc.Type),
			entities.MetaFilename:     doc.Name,
			entities.MetaTotalChunks:  total,
		}
	}
	return chunks
}

func (uc *IngestUseCase) embedChunks(ctx context.Context, chunks []entities.Chunk) error {
	for start := 0; start < len(chunks); start += uc.batchSize {
		end := min(start+uc.batchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
		}
		for i, emb := range embeddings {
			chunks[start+i].Embedding = emb
		}
	}
	return nil
}
