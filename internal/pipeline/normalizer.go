package pipeline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/voice-expense/internal/domain"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var amountReplacer = strings.NewReplacer("$", "", ",", "", " ", "")

// Normalizer coerces provider output into canonical expense entries.
// Normalize never fails and is idempotent on its own output.
type Normalizer struct {
	aliases map[string]domain.Category
	now     func() time.Time
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithAliases adds lenient category aliases keyed by lower-cased name,
// e.g. "coffee" -> Food & Drink. Exact category names always win.
func WithAliases(aliases map[string]domain.Category) NormalizerOption {
	return func(n *Normalizer) {
		for k, v := range aliases {
			n.aliases[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
}

// WithNow overrides the clock used for missing dates.
func WithNow(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		aliases: make(map[string]domain.Category),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds an ExtractionResult from p, attaching transcript to every
// entry.
func (n *Normalizer) Normalize(p domain.ProvisionalResult, transcript string) domain.ExtractionResult {
	now := n.now().UTC()

	entries := make([]domain.Entry, 0, len(p.Expenses))
	for _, e := range p.Expenses {
		entries = append(entries, domain.Entry{
			Amount:           coerceAmount(e.Amount),
			Category:         n.resolveCategory(e.Category),
			Date:             parseDate(e.Date, now),
			Merchant:         optionalString(e.Merchant),
			Notes:            optionalString(e.Notes),
			RawTranscription: transcript,
		})
	}

	result := domain.ExtractionResult{
		Entries:            entries,
		Confidence:         domain.ParseConfidence(p.Confidence),
		NeedsClarification: p.NeedsClarification,
	}
	if p.ClarificationQuestion != nil {
		result.ClarificationQuestion = strings.TrimSpace(*p.ClarificationQuestion)
	}
	return result
}

func (n *Normalizer) resolveCategory(raw string) domain.Category {
	if c, ok := domain.LookupCategory(raw); ok {
		return c
	}
	if c, ok := n.aliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return c
	}
	return domain.CategoryOther
}

// coerceAmount turns whatever the model sent into a two-decimal amount.
// Unreadable values become zero and are caught by confidence validation.
func coerceAmount(v any) decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch a := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(a.String())
	case float64:
		d = decimal.NewFromFloat(a)
	case int:
		d = decimal.NewFromInt(int64(a))
	case int64:
		d = decimal.NewFromInt(a)
	case decimal.Decimal:
		d = a
	case string:
		d, err = decimal.NewFromString(amountReplacer.Replace(strings.TrimSpace(a)))
	default:
		return decimal.Zero
	}
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

func parseDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return now
}

func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
