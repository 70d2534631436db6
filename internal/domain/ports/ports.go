// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed length of every vector this service returns.
	Dimensions() int
}

// ResponseSchema is a JSON Schema document the model response must satisfy.
type ResponseSchema struct {
	Name   string
	Schema map[string]any
}

// LLMService is the opaque generative-model capability.
type LLMService interface {
	// Generate submits a prompt with a JSON schema contract and returns the raw text.
	Generate(ctx context.Context, prompt string, schema ResponseSchema) (string, error)
}

// VectorStore persists chunks and answers nearest-neighbour queries.
type VectorStore interface {
	// Store saves chunks with their embeddings. All or nothing.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search returns at most topK chunks by descending cosine similarity.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Stats reports corpus size.
	Stats(ctx context.Context) (entities.CorpusStats, error)

	// Clear removes all data from the store.
	Clear(ctx context.Context) error

	// Dimensions is the configured vector length.
	Dimensions() int
}

// TextExtractor turns uploaded files into plain text.
type TextExtractor interface {
	// Extract returns the best-effort text of a PDF, DOCX or TXT payload.
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// TokenCounter measures prompt budget.
type TokenCounter interface {
	CountTokens(text string) int
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
