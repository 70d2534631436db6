package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var testSchema = ports.ResponseSchema{
	Name:   "test",
	Schema: map[string]any{"type": "object"},
}

func TestOllamaLLM_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "Hi", req.Prompt)
		assert.False(t, req.Stream)
		assert.Equal(t, "object", req.Format["type"])

		json.NewEncoder(w).Encode(map[string]any{
			"response": `{"ok": true}`,
			"done":     true,
		})
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test-model")
	resp, err := adapter.Generate(context.Background(), "Hi", testSchema)

	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, resp)
}

func TestOllamaLLM_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewOllamaLLMAdapter(server.URL, "test")
	_, err := adapter.Generate(context.Background(), "test", testSchema)

	assert.ErrorIs(t, err, entities.ErrModelUnavailable)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaLLM_Unreachable(t *testing.T) {
	adapter := NewOllamaLLMAdapter("http://127.0.0.1:1", "test")
	_, err := adapter.Generate(context.Background(), "test", testSchema)

	assert.ErrorIs(t, err, entities.ErrModelUnavailable)
}

func TestOllamaLLM_DefaultValues(t *testing.T) {
	adapter := NewOllamaLLMAdapter("", "")

	assert.Equal(t, "http://localhost:11434", adapter.baseURL)
	assert.Equal(t, "llama3.2", adapter.model)
}
