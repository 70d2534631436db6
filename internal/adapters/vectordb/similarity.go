package vectordb

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// scored is a search candidate. seq is the insertion order, used to break
// score ties so the most recently stored chunk wins.
type scored struct {
	chunk entities.Chunk
	score float64
	seq   int64
}

// rank sorts candidates and keeps the top k.
func rank(candidates []scored, topK int) []entities.QueryResult {
	slices.SortFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]entities.QueryResult, len(candidates))
	for i, c := range candidates {
		results[i] = entities.QueryResult{Chunk: c.chunk, Score: c.score}
	}
	return results
}

// checkDimensions rejects a batch before anything is written.
func checkDimensions(chunks []entities.Chunk, dims int) error {
	for _, c := range chunks {
		if len(c.Embedding) != dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				entities.ErrConfiguration, c.ID, len(c.Embedding), dims)
		}
	}
	return nil
}

// documentIDs lists the distinct document IDs of a batch in order.
func documentIDs(chunks []entities.Chunk) []string {
	var ids []string
	for _, c := range chunks {
		if !slices.Contains(ids, c.DocumentID) {
			ids = append(ids, c.DocumentID)
		}
	}
	return ids
}

func duplicateDocument(id string) error {
	return fmt.Errorf("%w: %s", entities.ErrDuplicateDocument, id)
}

func checkQuery(embedding []float32, dims int) error {
	if len(embedding) != dims {
		return fmt.Errorf("%w: query has %d dimensions, store expects %d",
			entities.ErrConfiguration, len(embedding), dims)
	}
	return nil
}

// cosineSimilarity calculates cosine similarity between two vectors.
// A zero vector scores 0 against everything.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
