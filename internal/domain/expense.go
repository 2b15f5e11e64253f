package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is a member of the closed expense category set.
type Category string

const (
	CategoryFoodAndDrink  Category = "Food & Drink"
	CategoryGroceries     Category = "Groceries"
	CategoryTransport     Category = "Transport"
	CategoryRent          Category = "Rent"
	CategoryEntertainment Category = "Entertainment"

	// CategoryOther is the catch-all used whenever category matching fails.
	CategoryOther Category = "Other"
)

// Categories lists the closed category set in display order.
var Categories = []Category{
	CategoryFoodAndDrink,
	CategoryGroceries,
	CategoryTransport,
	CategoryRent,
	CategoryEntertainment,
	CategoryOther,
}

// LookupCategory returns the canonical category whose name equals s, ignoring
// case and surrounding whitespace.
func LookupCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// CategoryNames returns the category set as plain strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// Confidence is the provider's self-reported certainty about a result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps a provider label onto a Confidence. Missing or
// unrecognized labels become medium.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// Entry is one normalized expense ready to be handed to the persistence layer.
type Entry struct {
	Amount           decimal.Decimal `json:"amount"`
	Category         Category        `json:"category"`
	Date             time.Time       `json:"date"`
	Merchant         *string         `json:"merchant"`
	Notes            *string         `json:"notes"`
	RawTranscription string          `json:"raw_transcription"`
}

// ExtractionResult is the normalized output of one extraction call. It is a
// value: stages after normalization read it but never modify it.
type ExtractionResult struct {
	Entries               []Entry    `json:"expenses"`
	Confidence            Confidence `json:"confidence"`
	NeedsClarification    bool       `json:"needs_clarification"`
	ClarificationQuestion string     `json:"clarification_question,omitempty"`
}
