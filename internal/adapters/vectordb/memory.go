package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.VectorStore = (*InMemoryStore)(nil)

// InMemoryStore keeps chunks in process memory. Same semantics as
// SQLiteStore without durability.
type InMemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	chunks     []scored // score unused; seq records insertion order
	nextSeq    int64
}

// NewInMemoryStore creates an empty store for vectors of the given length.
func NewInMemoryStore(dimensions int) *InMemoryStore {
	return &InMemoryStore{dimensions: dimensions}
}

// Dimensions returns the configured vector length.
func (s *InMemoryStore) Dimensions() int {
	return s.dimensions
}

// Store appends chunks. Nothing is written if any chunk has the wrong
// length or belongs to a document that is already stored.
func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if err := checkDimensions(chunks, s.dimensions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range documentIDs(chunks) {
		for _, c := range s.chunks {
			if c.chunk.DocumentID == id {
				return duplicateDocument(id)
			}
		}
	}

	for _, chunk := range chunks {
		s.nextSeq++
		s.chunks = append(s.chunks, scored{chunk: chunk, seq: s.nextSeq})
	}
	return nil
}

// Search finds the most similar chunks to a query embedding.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if topK <= 0 {
		return []entities.QueryResult{}, nil
	}
	if err := checkQuery(embedding, s.dimensions); err != nil {
		return nil, err
	}

	s.mu.RLock()
	candidates := make([]scored, len(s.chunks))
	for i, c := range s.chunks {
		candidates[i] = scored{
			chunk: c.chunk,
			score: cosineSimilarity(embedding, c.chunk.Embedding),
			seq:   c.seq,
		}
	}
	s.mu.RUnlock()

	return rank(candidates, topK), nil
}

// Stats reports chunk and document counts and content size in bytes.
func (s *InMemoryStore) Stats(ctx context.Context) (entities.CorpusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[string]struct{})
	var stats entities.CorpusStats
	for _, c := range s.chunks {
		docs[c.chunk.DocumentID] = struct{}{}
		stats.ApproxBytes += int64(len(c.chunk.Content))
	}
	stats.ChunkCount = len(s.chunks)
	stats.DocumentCount = len(docs)
	return stats, nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = nil
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
