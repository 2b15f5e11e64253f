package transcription

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

const geminiTranscribePrompt = `Transcribe this audio recording verbatim in English.
Return only the spoken words as plain text, with no commentary, labels or formatting.
If nothing is spoken, return an empty response.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTranscriber transcribes audio with a Gemini model. Audio mirrored to
// GCS is passed by URI; otherwise the bytes are sent inline.
type GeminiTranscriber struct {
	models contentGenerator
	model  string
}

// NewGeminiTranscriber creates a transcriber. Backend selection (Gemini API
// or Vertex AI) follows the GOOGLE_GENAI_* environment when apiKey is empty.
func NewGeminiTranscriber(ctx context.Context, apiKey, model string) (*GeminiTranscriber, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create genai client: %w", err)
	}
	return newGeminiTranscriber(client.Models, model), nil
}

func newGeminiTranscriber(models contentGenerator, model string) *GeminiTranscriber {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiTranscriber{models: models, model: model}
}

func (g *GeminiTranscriber) Name() string { return "gemini" }

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio *Staged) (string, error) {
	var audioPart *genai.Part
	if audio.URI != "" {
		audioPart = genai.NewPartFromURI(audio.URI, audio.ContentType)
	} else {
		data, err := os.ReadFile(audio.Path)
		if err != nil {
			return "", fmt.Errorf("gemini: read staged audio: %w", err)
		}
		audioPart = genai.NewPartFromBytes(data, audio.ContentType)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(geminiTranscribePrompt),
			audioPart,
		}, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoText
	}
	return resp.Text(), nil
}
