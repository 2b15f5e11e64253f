package domain

import (
	"encoding/json"
	"time"
)

// ProvisionalEntry is one expense as a language model reported it. Amount is
// whatever the model sent: a json.Number, a string such as "$4.50", or nil.
type ProvisionalEntry struct {
	Amount   any     `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
	Merchant *string `json:"merchant"`
	Notes    *string `json:"notes"`
}

// ProvisionalResult is the unvalidated, unnormalized reply of an extraction
// provider.
type ProvisionalResult struct {
	Expenses              []ProvisionalEntry `json:"expenses"`
	Confidence            string             `json:"confidence"`
	NeedsClarification    bool               `json:"needsClarification"`
	ClarificationQuestion *string            `json:"clarificationQuestion"`
}

// Provisional converts a normalized result back into provider shape, so it
// can be fed through normalization again.
func (r ExtractionResult) Provisional() ProvisionalResult {
	out := ProvisionalResult{
		Expenses:           make([]ProvisionalEntry, 0, len(r.Entries)),
		Confidence:         string(r.Confidence),
		NeedsClarification: r.NeedsClarification,
	}
	if r.ClarificationQuestion != "" {
		q := r.ClarificationQuestion
		out.ClarificationQuestion = &q
	}
	for _, e := range r.Entries {
		out.Expenses = append(out.Expenses, ProvisionalEntry{
			Amount:   json.Number(e.Amount.String()),
			Category: string(e.Category),
			Date:     e.Date.UTC().Format(time.RFC3339Nano),
			Merchant: e.Merchant,
			Notes:    e.Notes,
		})
	}
	return out
}
