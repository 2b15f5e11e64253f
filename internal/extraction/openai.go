package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

const (
	DefaultGroqModel = "llama-3.3-70b-versatile"
	parseTemperature = 0.2
)

type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIProvider extracts expenses through an OpenAI-compatible chat
// completions API. Groq is the default deployment.
type OpenAIProvider struct {
	ConfidenceValidator

	chat  chatCompleter
	model string
	now   func() time.Time
}

// NewOpenAIProvider creates a provider. Retries are disabled; the pipeline
// reports upstream failures instead of multiplying spend.
func NewOpenAIProvider(apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIProvider {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	return newOpenAIProvider(&client.Chat.Completions, model)
}

func newOpenAIProvider(chat chatCompleter, model string) *OpenAIProvider {
	if model == "" {
		model = DefaultGroqModel
	}
	return &OpenAIProvider{chat: chat, model: model, now: time.Now}
}

func (p *OpenAIProvider) Name() string { return "openai:" + p.model }

func (p *OpenAIProvider) Parse(ctx context.Context, text string) (domain.ProvisionalResult, error) {
	completion, err := p.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildSystemPrompt(p.now())),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(parseTemperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider(providerMessage(err), fmt.Errorf("chat completion: %w", err))
	}

	if completion == nil || len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider("No response from AI provider", nil)
	}

	return DecodeReply(completion.Choices[0].Message.Content)
}

func providerMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "AI provider timed out"
	}
	return ""
}
