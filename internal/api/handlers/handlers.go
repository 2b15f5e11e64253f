package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/dvloznov/voice-expense/internal/api/middleware"
	"github.com/dvloznov/voice-expense/internal/apperr"
	"github.com/dvloznov/voice-expense/internal/domain"
	"github.com/dvloznov/voice-expense/internal/logger"
	"github.com/dvloznov/voice-expense/internal/pipeline"
	"github.com/dvloznov/voice-expense/internal/transcription"
	"github.com/dvloznov/voice-expense/internal/usage"
)

// Parts of a multipart upload above this size are spooled to disk by net/http.
const multipartMemory = 8 << 20

// Extractor runs the extraction pipeline.
type Extractor interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// UsageReader reports a caller's quota.
type UsageReader interface {
	Remaining(ctx context.Context, userID string, tier domain.Tier) (usage.Snapshot, error)
}

// ExpensesHandler handles expense parsing endpoints.
type ExpensesHandler struct {
	extractor     Extractor
	usage         UsageReader
	maxAudioBytes int64
}

// NewExpensesHandler creates a new expenses handler.
func NewExpensesHandler(extractor Extractor, usage UsageReader, maxAudioBytes int64) *ExpensesHandler {
	if maxAudioBytes <= 0 {
		maxAudioBytes = transcription.DefaultMaxBytes
	}
	return &ExpensesHandler{
		extractor:     extractor,
		usage:         usage,
		maxAudioBytes: maxAudioBytes,
	}
}

type expenseDTO struct {
	Amount           float64 `json:"amount"`
	Category         string  `json:"category"`
	Date             string  `json:"date"`
	Merchant         *string `json:"merchant"`
	Notes            *string `json:"notes"`
	RawTranscription string  `json:"raw_transcription"`
}

type parseData struct {
	Expenses   []expenseDTO   `json:"expenses"`
	Confidence string         `json:"confidence"`
	Usage      usage.Snapshot `json:"usage"`
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Parse handles POST /api/expenses/parse. The body is either multipart form
// data with an "audio" file and/or "transcription" field, or JSON
// {"transcription": "..."}.
func (h *ExpensesHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := middleware.IdentityFrom(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	req := pipeline.Request{UserID: id.UserID, Tier: id.Tier}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		// Leave headroom for the text fields around the file.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				middleware.WriteAppError(w, apperr.Validation("Audio file is too large"))
				return
			}
			middleware.WriteAppError(w, apperr.Validation("Invalid multipart form"))
			return
		}
		// Spooled parts are temp files too.
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				log := logger.FromContext(ctx)
				log.Warn().Err(err).Msg("failed to remove multipart temp files")
			}
		}()

		req.Text = r.FormValue("transcription")

		file, header, err := r.FormFile("audio")
		switch {
		case err == nil:
			defer file.Close()
			req.Audio = &transcription.Audio{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		case errors.Is(err, http.ErrMissingFile):
		default:
			middleware.WriteAppError(w, apperr.Validation("Invalid audio upload"))
			return
		}

	default:
		var body struct {
			Transcription string `json:"transcription"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			middleware.WriteAppError(w, apperr.Validation("Invalid request body"))
			return
		}
		req.Text = body.Transcription
	}

	resp, err := h.extractor.Run(ctx, req)
	if err != nil {
		h.writeFailure(ctx, w, err)
		return
	}

	expenses := make([]expenseDTO, 0, len(resp.Result.Entries))
	for _, e := range resp.Result.Entries {
		expenses = append(expenses, expenseDTO{
			Amount:           e.Amount.InexactFloat64(),
			Category:         string(e.Category),
			Date:             e.Date.UTC().Format(time.RFC3339),
			Merchant:         e.Merchant,
			Notes:            e.Notes,
			RawTranscription: e.RawTranscription,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: parseData{
			Expenses:   expenses,
			Confidence: string(resp.Result.Confidence),
			Usage:      resp.Usage,
		},
	})
}

// Usage handles GET /api/usage.
func (h *ExpensesHandler) Usage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := middleware.IdentityFrom(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	snapshot, err := h.usage.Remaining(ctx, id.UserID, id.Tier)
	if err != nil {
		h.writeFailure(ctx, w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]usage.Snapshot{"usage": snapshot},
	})
}

func (h *ExpensesHandler) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	if apperr.StatusOf(err) >= http.StatusInternalServerError {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("request failed")
	}
	middleware.WriteAppError(w, err)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
