package extraction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
)

func entry(amount string, cat domain.Category) domain.Entry {
	return domain.Entry{Amount: decimal.RequireFromString(amount), Category: cat}
}

func TestConfidenceValidator(t *testing.T) {
	tests := []struct {
		name    string
		result  domain.ExtractionResult
		wantMsg string
	}{
		{
			name: "usable",
			result: domain.ExtractionResult{
				Entries:    []domain.Entry{entry("4.5", domain.CategoryFoodAndDrink)},
				Confidence: domain.ConfidenceHigh,
			},
		},
		{
			name: "other category is never a reason to ask",
			result: domain.ExtractionResult{
				Entries: []domain.Entry{entry("10", domain.CategoryOther)},
			},
		},
		{
			name: "provider question wins over everything",
			result: domain.ExtractionResult{
				NeedsClarification:    true,
				ClarificationQuestion: "Was that 15 or 50 dollars?",
			},
			wantMsg: "Was that 15 or 50 dollars?",
		},
		{
			name: "flag without question falls through",
			result: domain.ExtractionResult{
				Entries:            []domain.Entry{entry("3", domain.CategoryTransport)},
				NeedsClarification: true,
			},
		},
		{
			name:    "no entries",
			result:  domain.ExtractionResult{Confidence: domain.ConfidenceHigh},
			wantMsg: msgNoExpenses,
		},
		{
			name: "zero amount",
			result: domain.ExtractionResult{
				Entries: []domain.Entry{entry("4", domain.CategoryRent), entry("0", domain.CategoryRent)},
			},
			wantMsg: msgInvalidAmounts,
		},
		{
			name: "negative amount",
			result: domain.ExtractionResult{
				Entries: []domain.Entry{entry("-2", domain.CategoryGroceries)},
			},
			wantMsg: msgInvalidAmounts,
		},
	}

	var v ConfidenceValidator
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateConfidence(tt.result)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindClarificationRequired))
			assert.Equal(t, tt.wantMsg, apperr.MessageOf(err))
			assert.Equal(t, 400, apperr.StatusOf(err))
		})
	}
}
