package extraction

import (
	"strings"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

const (
	msgNoExpenses     = "No expenses could be extracted from the transcription. Could you please provide more details?"
	msgInvalidAmounts = "Some expenses have invalid amounts. Could you please clarify the amounts?"
)

// ConfidenceValidator decides whether a normalized result can be returned
// or the user must be asked a follow-up question. Providers embed it to
// satisfy Provider.ValidateConfidence.
type ConfidenceValidator struct{}

// ValidateConfidence returns nil for a usable result, otherwise a
// ClarificationRequired error. Checks run in order: provider-raised question,
// empty result, non-positive amounts.
func (ConfidenceValidator) ValidateConfidence(result domain.ExtractionResult) error {
	if result.NeedsClarification && strings.TrimSpace(result.ClarificationQuestion) != "" {
		return apperr.ClarificationRequired(result.ClarificationQuestion)
	}

	if len(result.Entries) == 0 {
		return apperr.ClarificationRequired(msgNoExpenses)
	}

	for _, e := range result.Entries {
		if !e.Amount.IsPositive() {
			return apperr.ClarificationRequired(msgInvalidAmounts)
		}
	}

	return nil
}
