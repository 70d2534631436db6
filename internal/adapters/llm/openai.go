package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.LLMService = (*OpenAILLMAdapter)(nil)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "gpt-4o-mini"

	// DefaultOpenAITimeout bounds a single completion call.
	DefaultOpenAITimeout = 120 * time.Second
)

// ErrAPIKeyNotSet is returned when the OpenAI key is missing.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// OpenAILLMAdapter implements ports.LLMService with chat completions
// constrained by the caller's JSON schema, or JSON object mode when no
// schema is given. The SDK's automatic retries are disabled; a failed
// call is reported once.
type OpenAILLMAdapter struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAILLMAdapter creates an adapter. baseURL may be empty.
func NewOpenAILLMAdapter(apiKey, baseURL, model string) (*OpenAILLMAdapter, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAILLMAdapter{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: DefaultOpenAITimeout,
		logger:  slog.Default().With("component", "openai-llm"),
	}, nil
}

// Generate runs one chat completion and returns the message content.
func (a *OpenAILLMAdapter) Generate(ctx context.Context, prompt string, schema ports.ResponseSchema) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:    openai.Float(0),
		ResponseFormat: responseFormat(schema),
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: OpenAI API call failed: %v", entities.ErrModelUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", entities.ErrModelUnavailable)
	}

	a.logger.Debug("generation finished",
		"model", completion.Model,
		"schema", schema.Name,
		"tokens", completion.Usage.TotalTokens,
	)
	return completion.Choices[0].Message.Content, nil
}

// responseFormat passes the schema non-strict; strict mode rejects
// optional properties.
func responseFormat(schema ports.ResponseSchema) openai.ChatCompletionNewParamsResponseFormatUnion {
	if schema.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	name := schema.Name
	if name == "" {
		name = "response"
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Strict: openai.Bool(false),
				Schema: schema.Schema,
			},
		},
	}
}
