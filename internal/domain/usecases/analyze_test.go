package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// mockLLM implements ports.LLMService for testing
type mockLLM struct {
	response string
	err      error
	calls    int
	prompt   string
	schema   ports.ResponseSchema
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, schema ports.ResponseSchema) (string, error) {
	m.calls++
	m.prompt = prompt
	m.schema = schema
	return m.response, m.err
}

// wordCounter counts whitespace separated words.
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

const validPayload = `{
  "deviations": [
    {"clause": "Payment terms", "issue": "Customer asks net 90", "riskLevel": "high",
     "customerAsk": "Net 90", "ourStandard": "Net 30", "deviationPct": 67, "suggestion": "Offer net 45"}
  ],
  "redlineHtml": "<p>Net <span class=\"line-through\">90</span><span class=\"underline\">45</span></p>",
  "kpis": {"cycleTimeDays": 3, "coveragePct": 80, "riskReductionPct": 40}
}`

func newAnalyzer(llm *mockLLM, store *mockVectorStore, opts ...AnalyzeOption) *AnalyzeUseCase {
	return NewAnalyzeUseCase(NewRetrieveUseCase(&mockEmbedder{}, store), llm, opts...)
}

func TestAnalyzeUseCase_Success(t *testing.T) {
	llm := &mockLLM{response: validPayload}
	store := &mockVectorStore{chunks: []entities.Chunk{
		{ID: "c1", DocumentID: "d1", Content: "Standard payment is net 30.", Metadata: map[string]string{entities.MetaFilename: "msa.pdf"}},
	}}
	uc := newAnalyzer(llm, store)

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{
		RFQText:        "We require net 90 payment terms.",
		AuxiliaryTexts: []string{"SOW one", "  ", "SOW two"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, AnalysisSchema.Name, llm.schema.Name)
	assert.Contains(t, llm.prompt, "We require net 90 payment terms.")
	assert.Contains(t, llm.prompt, "SOW one\nSOW two")
	assert.Contains(t, llm.prompt, "From msa.pdf:\nStandard payment is net 30.")

	require.Len(t, result.Deviations, 1)
	dev := result.Deviations[0]
	assert.Equal(t, "Payment terms", dev.Clause)
	assert.Equal(t, entities.RiskHigh, dev.RiskLevel)
	require.NotNil(t, dev.DeviationPct)
	assert.Equal(t, 67.0, *dev.DeviationPct)
	assert.Equal(t, 80.0, result.KPIs.CoveragePct)
	assert.Len(t, result.Context, 1)
	assert.Equal(t, []entities.AnalysisState{
		entities.StateCollectingInput,
		entities.StateRetrievingContext,
		entities.StateInvokingModel,
		entities.StateValidatingResponse,
		entities.StateDone,
	}, result.Trace)
}

func TestAnalyzeUseCase_EmptyCorpusStillAnalyzes(t *testing.T) {
	llm := &mockLLM{response: validPayload}
	uc := newAnalyzer(llm, &mockVectorStore{})

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	require.NoError(t, err)
	assert.Empty(t, result.Context)
	assert.NotContains(t, llm.prompt, "Relevant excerpts")
}

func TestAnalyzeUseCase_EmbedderDownStillAnalyzes(t *testing.T) {
	llm := &mockLLM{response: validPayload}
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, entities.ErrModelUnavailable
	}}
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1", Content: "x"}}}
	uc := NewAnalyzeUseCase(NewRetrieveUseCase(embedder, store), llm)

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	require.NoError(t, err)
	assert.Empty(t, result.Context)
	assert.Equal(t, 1, llm.calls)
}

func TestAnalyzeUseCase_BlankRFQ(t *testing.T) {
	llm := &mockLLM{response: validPayload}
	uc := newAnalyzer(llm, &mockVectorStore{})

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: " \n "})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	var analysisErr *entities.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, entities.StateCollectingInput, analysisErr.State)
	assert.Equal(t, []entities.AnalysisState{entities.StateCollectingInput, entities.StateFailed}, analysisErr.Trace)
	assert.Equal(t, 0, llm.calls)
}

func TestAnalyzeUseCase_ModelUnavailable(t *testing.T) {
	llm := &mockLLM{err: errors.New("connection refused")}
	uc := newAnalyzer(llm, &mockVectorStore{})

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, entities.ErrModelUnavailable)

	var analysisErr *entities.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, entities.StateInvokingModel, analysisErr.State)
	assert.Equal(t, entities.StateFailed, analysisErr.Trace[len(analysisErr.Trace)-1])
	assert.Equal(t, 1, llm.calls, "the model is not retried")
}

func TestAnalyzeUseCase_EmptyModelOutput(t *testing.T) {
	uc := newAnalyzer(&mockLLM{response: "  "}, &mockVectorStore{})

	_, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	assert.ErrorIs(t, err, entities.ErrModelUnavailable)
}

func TestAnalyzeUseCase_ProseWrappedJSONRecovered(t *testing.T) {
	llm := &mockLLM{response: "Sure! Here is the analysis:\n```json\n" + validPayload + "\n```\nLet me know."}
	uc := newAnalyzer(llm, &mockVectorStore{})

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	require.NoError(t, err)
	assert.Len(t, result.Deviations, 1)
	assert.Equal(t, entities.StateDone, result.Trace[len(result.Trace)-1])
}

func TestAnalyzeUseCase_PureProseFails(t *testing.T) {
	const prose = "I could not find any deviations worth reporting."
	uc := newAnalyzer(&mockLLM{response: prose}, &mockVectorStore{})

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, entities.ErrMalformedModelOutput)

	var analysisErr *entities.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, entities.StateValidatingResponse, analysisErr.State)
	assert.Equal(t, entities.StateFailed, analysisErr.Trace[len(analysisErr.Trace)-1])

	var malformed *entities.MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, prose, malformed.Raw)
}

func TestAnalyzeUseCase_ContextTrimmedToBudget(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{
		{ID: "c1", DocumentID: "a", Content: "one two three four five"},
		{ID: "c2", DocumentID: "b", Content: "six seven eight nine ten"},
		{ID: "c3", DocumentID: "c", Content: "eleven twelve"},
	}}
	llm := &mockLLM{response: validPayload}
	// each block costs "From x:" (2 words) plus its content
	uc := newAnalyzer(llm, store, WithContextBudget(wordCounter{}, 14))

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	require.NoError(t, err)
	require.Len(t, result.Context, 2)
	assert.Equal(t, "c1", result.Context[0].Chunk.ID)
	assert.NotContains(t, llm.prompt, "eleven twelve")
}

func TestAnalyzeUseCase_TopK(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}}
	uc := newAnalyzer(&mockLLM{response: validPayload}, store, WithTopK(2))

	result, err := uc.Analyze(context.Background(), entities.AnalysisRequest{RFQText: "RFQ"})
	require.NoError(t, err)
	assert.Len(t, result.Context, 2)
}
