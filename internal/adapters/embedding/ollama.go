// Package embedding provides embedding adapters implementing ports.EmbeddingService.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.EmbeddingService = (*OllamaAdapter)(nil)

// OllamaAdapter embeds text with a local Ollama server. A whole batch goes
// out in one /api/embed request.
type OllamaAdapter struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	logger     *slog.Logger
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
// dimensions must match what the model produces (768 for nomic-embed-text).
func NewOllamaAdapter(baseURL, model string, dimensions int) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dimensions <= 0 {
		dimensions = 768
	}
	return &OllamaAdapter{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 120 * time.Second},
		logger:     slog.Default().With("component", "ollama-embedder"),
	}
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Dimensions returns the configured vector length.
func (a *OllamaAdapter) Dimensions() int {
	return a.dimensions
}

// Embed generates an embedding for a single text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one call. The response must hold exactly one
// vector per input.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload, err := json.Marshal(ollamaEmbedRequest{Model: a.model, Input: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("ollama call failed", "url", a.baseURL, "error", err)
		return nil, fmt.Errorf("%w: calling Ollama: %v", entities.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: Ollama returned status %d: %s",
			entities.ErrModelUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding Ollama response: %v", entities.ErrModelUnavailable, err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: Ollama returned %d embeddings for %d inputs",
			entities.ErrModelUnavailable, len(embedResp.Embeddings), len(texts))
	}

	a.logger.Debug("embedded batch", "model", a.model, "inputs", len(texts))
	return embedResp.Embeddings, nil
}
