// Package llm provides generative model adapters implementing ports.LLMService.
package llm

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

var _ ports.LLMService = (*OllamaLLMAdapter)(nil)

// OllamaLLMAdapter implements ports.LLMService using the Ollama generate API.
// The response schema is passed as the structured output "format".
type OllamaLLMAdapter struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLMAdapter{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second,
		},
		logger: slog.Default().With("component", "ollama-llm"),
	}
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  map[string]any `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// ollamaGenerateResponse is the Ollama generate API response.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends one non-streaming request and returns the raw text.
// Transport failures and non-200 statuses wrap entities.ErrModelUnavailable.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, prompt string, schema ports.ResponseSchema) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:   a.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  schema.Schema,
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: calling Ollama: %v", entities.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: Ollama returned status %d: %s", entities.ErrModelUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	a.logger.Debug("generation finished",
		"model", a.model,
		"schema", schema.Name,
		"duration", time.Since(start),
		"chars", len(genResp.Response),
	)
	return genResp.Response, nil
}
