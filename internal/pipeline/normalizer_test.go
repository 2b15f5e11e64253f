package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-expense/internal/domain"
)

var testNow = time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC)

func newTestNormalizer(opts ...NormalizerOption) *Normalizer {
	return NewNormalizer(append([]NormalizerOption{WithNow(func() time.Time { return testNow })}, opts...)...)
}

func ptr(s string) *string { return &s }

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{json.Number("45.50"), "45.5"},
		{json.Number("12"), "12"},
		{45.5, "45.5"},
		{12, "12"},
		{int64(7), "7"},
		{"$1,234.56", "1234.56"},
		{" 3.333 ", "3.33"},
		{"twenty", "0"},
		{nil, "0"},
		{true, "0"},
		{json.Number("-4"), "-4"},
	}
	for _, tt := range tests {
		got := coerceAmount(tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%v: got %s want %s", tt.in, got, tt.want)
	}
}

func TestResolveCategory(t *testing.T) {
	n := newTestNormalizer(WithAliases(map[string]domain.Category{
		"Coffee": domain.CategoryFoodAndDrink,
		"uber":   domain.CategoryTransport,
	}))

	tests := map[string]domain.Category{
		"Food & Drink":   domain.CategoryFoodAndDrink,
		"  groceries ":   domain.CategoryGroceries,
		"TRANSPORT":      domain.CategoryTransport,
		"coffee":         domain.CategoryFoodAndDrink,
		"Uber":           domain.CategoryTransport,
		"xyz123":         domain.CategoryOther,
		"":               domain.CategoryOther,
		"Entertainment!": domain.CategoryOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, n.resolveCategory(in), in)
	}

	// Without aliases lenient words fall back to the catch-all.
	assert.Equal(t, domain.CategoryOther, newTestNormalizer().resolveCategory("coffee"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", testNow},
		{"yesterday", testNow},
		{"2026-01-05", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"2026-01-05T08:15:00Z", time.Date(2026, 1, 5, 8, 15, 0, 0, time.UTC)},
		{"2026-01-05T08:15:00-05:00", time.Date(2026, 1, 5, 13, 15, 0, 0, time.UTC)},
		{"2026-01-05T08:15:00", time.Date(2026, 1, 5, 8, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.True(t, tt.want.Equal(parseDate(tt.in, testNow)), tt.in)
	}
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()
	got := n.Normalize(domain.ProvisionalResult{
		Expenses: []domain.ProvisionalEntry{
			{Amount: json.Number("45.50"), Category: "food & drink", Merchant: ptr("Starbucks"), Notes: ptr("  ")},
			{Amount: "$12", Category: "nonsense", Date: "2026-01-08"},
		},
		Confidence:            "VERY SURE",
		ClarificationQuestion: ptr(" "),
	}, "transcript")

	require.Len(t, got.Entries, 2)
	assert.Equal(t, domain.CategoryFoodAndDrink, got.Entries[0].Category)
	assert.Equal(t, "Starbucks", *got.Entries[0].Merchant)
	assert.Nil(t, got.Entries[0].Notes)
	assert.Equal(t, testNow, got.Entries[0].Date)
	assert.Equal(t, domain.CategoryOther, got.Entries[1].Category)
	assert.Equal(t, time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC), got.Entries[1].Date)
	for _, e := range got.Entries {
		assert.Equal(t, "transcript", e.RawTranscription)
	}
	assert.Equal(t, domain.ConfidenceMedium, got.Confidence)
	assert.Empty(t, got.ClarificationQuestion)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer(WithAliases(map[string]domain.Category{"coffee": domain.CategoryFoodAndDrink}))
	inputs := []domain.ProvisionalResult{
		{
			Expenses: []domain.ProvisionalEntry{
				{Amount: json.Number("45.50"), Category: "coffee", Merchant: ptr(" Starbucks ")},
				{Amount: "$1,200", Category: "rent", Date: "2026-01-01T09:00:00+02:00", Notes: ptr("January")},
				{Amount: "n/a", Category: "???", Date: "not a date"},
				{Amount: 3.14159, Category: "GROCERIES"},
			},
			Confidence:            "low",
			NeedsClarification:    true,
			ClarificationQuestion: ptr("Which card?"),
		},
		{},
	}

	for _, in := range inputs {
		once := n.Normalize(in, "t")
		twice := n.Normalize(once.Provisional(), "t")

		require.Len(t, twice.Entries, len(once.Entries))
		for i := range once.Entries {
			a, b := once.Entries[i], twice.Entries[i]
			assert.True(t, a.Amount.Equal(b.Amount), "amount %d: %s vs %s", i, a.Amount, b.Amount)
			assert.Equal(t, a.Category, b.Category)
			assert.True(t, a.Date.Equal(b.Date))
			assert.Equal(t, a.Merchant, b.Merchant)
			assert.Equal(t, a.Notes, b.Notes)
			assert.Equal(t, a.RawTranscription, b.RawTranscription)
		}
		assert.Equal(t, once.Confidence, twice.Confidence)
		assert.Equal(t, once.NeedsClarification, twice.NeedsClarification)
		assert.Equal(t, once.ClarificationQuestion, twice.ClarificationQuestion)
	}
}
