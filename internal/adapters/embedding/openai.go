package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.EmbeddingService = (*OpenAIEmbedder)(nil)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// maxOpenAIBatch is the per-request input limit.
	maxOpenAIBatch = 100
)

// ErrAPIKeyNotSet is returned when the OpenAI key is missing.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// OpenAIEmbedder generates embeddings with the OpenAI embeddings API
// (or any compatible endpoint via baseURL).
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder. baseURL may be empty.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", entities.ErrConfiguration)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Dimensions returns the requested vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed generates one embedding.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch splits texts into API-sized batches and keeps input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxOpenAIBatch {
		end := min(start+maxOpenAIBatch, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Dimensions: openai.Int(int64(e.dimensions)),
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: generating embeddings: %v", entities.ErrModelUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, fmt.Errorf("openai returned out of range index %d", data.Index)
		}
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		embeddings[data.Index] = vector
	}
	return embeddings, nil
}
