package extraction

import (
	"strings"
	"time"

	"github.com/dvloznov/voice-expense/internal/domain"
)

// buildSystemPrompt returns the instruction contract sent with every parse
// request. today anchors relative dates such as "yesterday".
func buildSystemPrompt(today time.Time) string {
	var b strings.Builder

	b.WriteString("You are an expense parsing assistant. Extract structured expense data from voice transcriptions.\n\n")
	b.WriteString("Today's date is " + today.UTC().Format("2006-01-02") + ".\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Extract ALL expenses mentioned in the transcription\n")
	b.WriteString("- Return a JSON object with an \"expenses\" array\n")
	b.WriteString("- Each expense must have: amount (number), category, date (ISO-8601), merchant (optional), notes (optional)\n")
	b.WriteString("- Valid categories: " + strings.Join(domain.CategoryNames(), ", ") + "\n")
	b.WriteString("- If date is not mentioned, use today's date\n")
	b.WriteString("- If you're unsure about any critical field (amount or category), set \"needsClarification\" to true and provide a \"clarificationQuestion\"\n")
	b.WriteString("- Amount must be a positive number\n")
	b.WriteString("- Be lenient with category matching (e.g., \"coffee\" -> \"Food & Drink\", \"uber\" -> \"Transport\")\n")
	b.WriteString("- If nothing fits, use \"" + string(domain.CategoryOther) + "\"\n\n")

	b.WriteString("Return ONLY valid JSON, no explanations or markdown. Response format:\n")
	b.WriteString(`{
  "expenses": [
    {
      "amount": 45.50,
      "category": "Food & Drink",
      "date": "2026-01-09T12:00:00Z",
      "merchant": "Starbucks",
      "notes": "Coffee with team"
    }
  ],
  "confidence": "high" | "medium" | "low",
  "needsClarification": false,
  "clarificationQuestion": null
}`)

	return b.String()
}
