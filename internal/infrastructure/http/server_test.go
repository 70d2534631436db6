package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contractrag/internal/adapters/tokens"
	"github.com/0xcro3dile/contractrag/internal/config"
	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
	"github.com/0xcro3dile/contractrag/internal/infrastructure/container"
)

const validAnalysis = `{"deviations":[{"clause":"Payment","issue":"Net 90 requested","riskLevel":"High","ourStandard":"Net 30"}],` +
	`"redlineHtml":"<p>Net <del>90</del> <ins>30</ins></p>","kpis":{"cycleTimeDays":2,"coveragePct":75,"riskReductionPct":30}}`

type fakeLLM struct {
	output string
	err    error
	calls  int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, schema ports.ResponseSchema) (string, error) {
	f.calls++
	return f.output, f.err
}

func newTestServer(t *testing.T, model *fakeLLM) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Store:     config.StoreConfig{Backend: config.StoreMemory},
		Chunking:  config.ChunkingConfig{Size: 200, Overlap: 20, EmbedBatchSize: 16},
		Retrieval: config.RetrievalConfig{TopK: 5, MaxContextTokens: 2000},
		Embedding: config.EmbeddingConfig{Provider: config.ProviderHash, Dimension: 64},
		LLM:       config.LLMConfig{Provider: config.ProviderOllama},
	}
	c, err := container.New(context.Background(), cfg,
		container.WithLLM(model),
		container.WithTokenCounter(tokens.Estimator{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return NewServer(c.Ingest, c.Retrieve, c.Analyze, c.Corpus, c.Extractor, ":0", nil).Handler()
}

type upload struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeLLM{})
	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAddDocumentsSearchStatsClear(t *testing.T) {
	h := newTestServer(t, &fakeLLM{})

	body, ct := multipartBody(t, map[string]string{"document_type": "msa"},
		upload{"files", "acme_msa.txt", "Payment terms: net 30 days from invoice."},
		upload{"files", "blank.txt", "   "},
		upload{"files", "broken.pdf", "not a pdf"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/documents", body)
	req.Header.Set("Content-Type", ct)
	rec, resp := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	success := resp["success"].([]any)
	require.Len(t, success, 1)
	assert.Equal(t, "acme_msa.txt", success[0].(map[string]any)["filename"])
	assert.Len(t, resp["errors"].([]any), 2)
	assert.Equal(t, float64(1), resp["total_chunks"])

	req = httptest.NewRequest(http.MethodPost, "/api/knowledge/search", strings.NewReader(`{"query":"net 30","k":3}`))
	rec, resp = do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	results := resp["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "acme_msa.txt", hit["filename"])
	assert.Equal(t, "MSA", hit["documentType"])

	rec, resp = do(t, h, httptest.NewRequest(http.MethodGet, "/api/knowledge/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), resp["chunkCount"])
	assert.Equal(t, float64(1), resp["documentCount"])

	rec, _ = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/knowledge", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/knowledge/search", strings.NewReader(`{"query":"net 30"}`))
	_, resp = do(t, h, req)
	assert.Empty(t, resp["results"])
}

func TestSearch_BlankQuery(t *testing.T) {
	h := newTestServer(t, &fakeLLM{})
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/search", strings.NewReader(`{"query":"  "}`))
	rec, resp := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "query is required")
}

func TestAnalyze(t *testing.T) {
	model := &fakeLLM{output: "Here you go:\n" + validAnalysis}
	h := newTestServer(t, model)

	body, ct := multipartBody(t, nil,
		upload{"rfq", "rfq.txt", "Customer requires net 90 payment terms."},
		upload{"sows", "sow.txt", "Our standard is net 30."},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec, resp := do(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, model.calls)
	deviations := resp["deviations"].([]any)
	require.Len(t, deviations, 1)
	assert.Equal(t, "High", deviations[0].(map[string]any)["riskLevel"])
	assert.Contains(t, resp["redlineHtml"], "<ins>30</ins>")
	assert.Equal(t, "done", resp["trace"].([]any)[4])
	assert.NotNil(t, resp["sources"])
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeLLM
		files    []upload
		status   int
		state    string
		wantsRaw bool
	}{
		{
			name:   "missing rfq",
			model:  &fakeLLM{output: validAnalysis},
			files:  []upload{{"sows", "sow.txt", "net 30"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "blank rfq",
			model:  &fakeLLM{output: validAnalysis},
			files:  []upload{{"rfq", "rfq.txt", "  "}},
			status: http.StatusBadRequest,
			state:  "collecting_input",
		},
		{
			name:   "unreadable rfq",
			model:  &fakeLLM{output: validAnalysis},
			files:  []upload{{"rfq", "rfq.pdf", "garbage"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "model down",
			model:  &fakeLLM{err: errors.New("connection refused")},
			files:  []upload{{"rfq", "rfq.txt", "net 90"}},
			status: http.StatusBadGateway,
			state:  "invoking_model",
		},
		{
			name:     "prose only",
			model:    &fakeLLM{output: "I cannot help with that."},
			files:    []upload{{"rfq", "rfq.txt", "net 90"}},
			status:   http.StatusBadGateway,
			state:    "validating_response",
			wantsRaw: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.model)
			body, ct := multipartBody(t, nil, tt.files...)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", ct)

			rec, resp := do(t, h, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, resp["error"])
			if tt.state != "" {
				assert.Equal(t, tt.state, resp["state"])
			}
			if tt.wantsRaw {
				assert.Equal(t, tt.model.output, resp["raw"])
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&entities.IngestionError{Err: entities.ErrEmptyDocument}))
	assert.Equal(t, http.StatusConflict, statusFor(&entities.IngestionError{Err: entities.ErrDuplicateDocument}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&entities.AnalysisError{Err: entities.ErrModelUnavailable}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(entities.ErrConfiguration))
}
