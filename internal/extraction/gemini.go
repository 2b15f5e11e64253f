package extraction

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider extracts expenses with a Gemini model in JSON mode.
type GeminiProvider struct {
	ConfidenceValidator

	models contentGenerator
	model  string
	now    func() time.Time
}

// NewGeminiProvider creates a provider. With an empty apiKey the backend is
// chosen from the GOOGLE_GENAI_* environment (Vertex AI in production).
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewGeminiProvider: create genai client: %w", err)
	}
	return newGeminiProvider(client.Models, model), nil
}

func newGeminiProvider(models contentGenerator, model string) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{models: models, model: model, now: time.Now}
}

func (p *GeminiProvider) Name() string { return "gemini:" + p.model }

func (p *GeminiProvider) Parse(ctx context.Context, text string) (domain.ProvisionalResult, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemPrompt(p.now()), genai.RoleUser),
		Temperature:       genai.Ptr[float32](parseTemperature),
		ResponseMIMEType:  "application/json",
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider(providerMessage(err), fmt.Errorf("generate content: %w", err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider("No response from AI provider", nil)
	}

	return DecodeReply(resp.Text())
}
