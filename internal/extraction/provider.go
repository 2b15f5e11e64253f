// Package extraction sends free-text expense descriptions to a language
// model and decodes its structured reply.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

// Provider is a language-model backed expense extractor. Implementations
// must return *apperr.Error of kind ExtractionProvider for upstream and
// decoding failures.
type Provider interface {
	Name() string
	Parse(ctx context.Context, text string) (domain.ProvisionalResult, error)
	ValidateConfidence(result domain.ExtractionResult) error
}

// DecodeReply parses a model reply into a ProvisionalResult. Markdown code
// fences and text around the outermost JSON object are tolerated.
func DecodeReply(raw string) (domain.ProvisionalResult, error) {
	cleaned := cleanModelJSON(raw)
	if cleaned == "" || cleaned == "null" {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider("No response from AI provider", nil)
	}
	// The reply must be a single JSON object.
	if !strings.HasPrefix(cleaned, "{") {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider(
			"AI provider returned malformed data",
			fmt.Errorf("decode model reply: top-level value is not an object"),
		)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()

	var out domain.ProvisionalResult
	if err := dec.Decode(&out); err != nil {
		return domain.ProvisionalResult{}, apperr.ExtractionProvider(
			"AI provider returned malformed data",
			fmt.Errorf("decode model reply: %w", err),
		)
	}
	return out, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	return s
}
