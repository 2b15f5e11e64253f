package transcription

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultWhisperModel = "whisper-large-v3"
	whisperLanguage     = "en"
)

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions
// endpoint, Groq's by default.
type WhisperTranscriber struct {
	client openai.Client
	model  string
}

// NewWhisperTranscriber creates a transcriber. baseURL may be empty for the
// OpenAI default. Retries are left to the caller.
func NewWhisperTranscriber(apiKey, baseURL, model string, opts ...option.RequestOption) *WhisperTranscriber {
	if model == "" {
		model = DefaultWhisperModel
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &WhisperTranscriber{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}
}

func (w *WhisperTranscriber) Name() string { return "whisper" }

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio *Staged) (string, error) {
	f, err := os.Open(audio.Path)
	if err != nil {
		return "", fmt.Errorf("whisper: open staged audio: %w", err)
	}
	defer f.Close()

	res, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(w.model),
		Language:       openai.String(whisperLanguage),
		ResponseFormat: openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper: transcription request: %w", err)
	}
	if res == nil {
		return "", ErrNoText
	}
	return res.Text, nil
}
