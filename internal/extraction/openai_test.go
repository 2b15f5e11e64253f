package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-expense/internal/apperr"
)

type fakeChat struct {
	completion *openai.ChatCompletion
	err        error
	got        openai.ChatCompletionNewParams
}

func (f *fakeChat) New(_ context.Context, body openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.got = body
	return f.completion, f.err
}

func completion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestOpenAIProvider_Parse(t *testing.T) {
	chat := &fakeChat{completion: completion(`{"expenses":[{"amount":12,"category":"Transport"}],"confidence":"medium"}`)}
	p := newOpenAIProvider(chat, "")

	got, err := p.Parse(context.Background(), "uber 12 dollars")
	require.NoError(t, err)

	require.Len(t, got.Expenses, 1)
	assert.Equal(t, "Transport", got.Expenses[0].Category)
	assert.Equal(t, openai.ChatModel(DefaultGroqModel), chat.got.Model)
	require.Len(t, chat.got.Messages, 2)
	assert.True(t, chat.got.Temperature.Valid())
	assert.InDelta(t, 0.2, chat.got.Temperature.Value, 1e-9)
	assert.NotNil(t, chat.got.ResponseFormat.OfJSONObject)
}

func TestOpenAIProvider_Failures(t *testing.T) {
	tests := []struct {
		name string
		chat *fakeChat
	}{
		{"upstream error", &fakeChat{err: errors.New("500")}},
		{"no choices", &fakeChat{completion: &openai.ChatCompletion{}}},
		{"empty content", &fakeChat{completion: completion("")}},
		{"prose", &fakeChat{completion: completion("Sorry, I cannot help.")}},
		{"null reply", &fakeChat{completion: completion("null")}},
		{"fenced null reply", &fakeChat{completion: completion("```json\nnull\n```")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newOpenAIProvider(tt.chat, "").Parse(context.Background(), "x")
			assert.True(t, apperr.Is(err, apperr.KindExtractionProvider))
		})
	}
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	p := newOpenAIProvider(&fakeChat{err: context.DeadlineExceeded}, "")
	_, err := p.Parse(context.Background(), "x")
	assert.True(t, apperr.Is(err, apperr.KindExtractionProvider))
	assert.Equal(t, "AI provider timed out", apperr.MessageOf(err))
}

func TestOpenAIProvider_AgainstHTTPServer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"expenses\":[{\"amount\":9.99,\"category\":\"Entertainment\"}],\"confidence\":\"high\"}"}}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key", srv.URL+"/", "")
	p.now = func() time.Time { return time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC) }

	got, err := p.Parse(context.Background(), "netflix 9.99")
	require.NoError(t, err)
	require.Len(t, got.Expenses, 1)
	assert.Equal(t, "high", got.Confidence)

	assert.Equal(t, DefaultGroqModel, body["model"])
	format, _ := body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}
