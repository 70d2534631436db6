package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

// DefaultMaxContextTokens bounds the retrieved context placed in the prompt.
const DefaultMaxContextTokens = 6000

// AnalyzeUseCase compares an RFQ against SOW/MSA standards in one model call.
// Each request walks collecting_input, retrieving_context, invoking_model and
// validating_response once, ending in done or failed.
type AnalyzeUseCase struct {
	retriever        *RetrieveUseCase
	llm              ports.LLMService
	tokens           ports.TokenCounter
	topK             int
	maxContextTokens int
	logger           *slog.Logger
}

type AnalyzeOption func(*AnalyzeUseCase)

// WithAnalyzeLogger sets the logger.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeOption {
	return func(uc *AnalyzeUseCase) {
		uc.logger = logger
	}
}

// WithTopK sets how many chunks are retrieved as grounding.
func WithTopK(k int) AnalyzeOption {
	return func(uc *AnalyzeUseCase) {
		if k > 0 {
			uc.topK = k
		}
	}
}

// WithContextBudget trims retrieved context to maxTokens as measured by
// counter. A budget of zero or less disables trimming.
func WithContextBudget(counter ports.TokenCounter, maxTokens int) AnalyzeOption {
	return func(uc *AnalyzeUseCase) {
		uc.tokens = counter
		uc.maxContextTokens = maxTokens
	}
}

// NewAnalyzeUseCase creates an AnalyzeUseCase with injected dependencies.
func NewAnalyzeUseCase(
	retriever *RetrieveUseCase,
	llm ports.LLMService,
	opts ...AnalyzeOption,
) *AnalyzeUseCase {
	uc := &AnalyzeUseCase{
		retriever:        retriever,
		llm:              llm,
		topK:             DefaultTopK,
		maxContextTokens: DefaultMaxContextTokens,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	return uc
}

// analysisRun records the states one request passes through.
type analysisRun struct {
	trace  []entities.AnalysisState
	logger *slog.Logger
}

func (r *analysisRun) enter(state entities.AnalysisState) {
	r.trace = append(r.trace, state)
	r.logger.Debug("analysis state", "state", state)
}

func (r *analysisRun) fail(state entities.AnalysisState, err error) error {
	r.trace = append(r.trace, entities.StateFailed)
	r.logger.Warn("analysis failed", "state", state, "error", err)
	return &entities.AnalysisError{
		State: state,
		Trace: append([]entities.AnalysisState(nil), r.trace...),
		Err:   err,
	}
}

// Analyze runs the pipeline. It returns a complete result or an
// *entities.AnalysisError, never a partial result.
func (uc *AnalyzeUseCase) Analyze(ctx context.Context, req entities.AnalysisRequest) (*entities.AnalysisResult, error) {
	run := &analysisRun{logger: uc.logger}

	run.enter(entities.StateCollectingInput)
	rfq := strings.TrimSpace(req.RFQText)
	if rfq == "" {
		return nil, run.fail(entities.StateCollectingInput,
			fmt.Errorf("%w: RFQ text is required", entities.ErrInvalidInput))
	}
	standards := make([]string, 0, len(req.AuxiliaryTexts))
	for _, text := range req.AuxiliaryTexts {
		if strings.TrimSpace(text) != "" {
			standards = append(standards, text)
		}
	}

	run.enter(entities.StateRetrievingContext)
	retrieved := uc.retriever.Retrieve(ctx, rfq, uc.topK)
	retrieved = uc.trimToBudget(retrieved)
	uc.logger.Info("analysis context collected",
		"standards", len(standards),
		"retrieved_chunks", len(retrieved),
	)

	run.enter(entities.StateInvokingModel)
	prompt := BuildAnalysisPrompt(rfq, standards, FormatContext(retrieved))
	raw, err := uc.llm.Generate(ctx, prompt, AnalysisSchema)
	if err != nil {
		if !errors.Is(err, entities.ErrModelUnavailable) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", entities.ErrModelUnavailable, err)
		}
		return nil, run.fail(entities.StateInvokingModel, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, run.fail(entities.StateInvokingModel,
			fmt.Errorf("%w: no model output", entities.ErrModelUnavailable))
	}

	run.enter(entities.StateValidatingResponse)
	result, err := ParseAnalysisResponse(raw)
	if err != nil {
		return nil, run.fail(entities.StateValidatingResponse, err)
	}

	run.enter(entities.StateDone)
	result.Context = retrieved
	result.Trace = run.trace
	uc.logger.Info("analysis completed", "deviations", len(result.Deviations))
	return result, nil
}

// trimToBudget keeps the highest ranked results whose formatted blocks fit
// within maxContextTokens.
func (uc *AnalyzeUseCase) trimToBudget(results []entities.QueryResult) []entities.QueryResult {
	if uc.tokens == nil || uc.maxContextTokens <= 0 {
		return results
	}

	used := 0
	for i, r := range results {
		used += uc.tokens.CountTokens(formatContextBlock(r))
		if used > uc.maxContextTokens {
			uc.logger.Debug("retrieved context trimmed", "kept", i, "dropped", len(results)-i)
			return results[:i]
		}
	}
	return results
}
