package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.EmbeddingService = (*HashingEmbedder)(nil)

// DefaultHashingDimensions matches all-MiniLM-L6-v2 so stores can be swapped.
const DefaultHashingDimensions = 384

// HashingEmbedder is a local, deterministic embedding model. Word unigrams,
// bigrams and character trigrams are hashed into a signed feature vector
// and L2-normalized, so texts sharing vocabulary land close together.
// It needs no network and is used offline and in tests.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder creates a hashing embedder with the given vector length.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Dimensions returns the vector length.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed hashes the text into a unit vector. Empty text yields the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		e.add(vec, "w:"+w, 1.0)
		if i > 0 {
			e.add(vec, "b:"+words[i-1]+" "+w, 0.5)
		}
		runes := []rune("^" + w + "$")
		for j := 0; j+3 <= len(runes); j++ {
			e.add(vec, "t:"+string(runes[j:j+3]), 0.25)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dimensions)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (e *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
