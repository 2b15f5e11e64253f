// Package apperr defines the error kinds the extraction pipeline reports to
// its callers. Every kind carries a machine-readable code, a human message and
// the HTTP status it maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindRateLimitExceeded
	KindClarificationRequired
	KindTranscriptionUnavailable
	KindExtractionProvider
)

// Machine-readable error codes returned to API clients.
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
	CodeClarificationRequired    = "CLARIFICATION_REQUIRED"
	CodeTranscriptionUnavailable = "TRANSCRIPTION_ERROR"
	CodeExtractionProvider       = "AI_PROVIDER_ERROR"
	CodeInternal                 = "INTERNAL_SERVER_ERROR"
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the request with backoff.
func (e *Error) Retryable() bool {
	return e.Kind == KindTranscriptionUnavailable || e.Kind == KindExtractionProvider
}

// Validation reports malformed, missing or oversized input.
func Validation(message string) *Error {
	if message == "" {
		message = "Validation failed"
	}
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Status: http.StatusBadRequest}
}

// EmptyTranscription reports audio that transcribed to nothing. It is a
// validation failure, not a provider failure.
func EmptyTranscription() *Error {
	return Validation("No speech detected in the audio file")
}

// RateLimitExceeded reports an exhausted daily quota.
func RateLimitExceeded() *Error {
	return &Error{
		Kind:    KindRateLimitExceeded,
		Code:    CodeRateLimitExceeded,
		Message: "You have exceeded your daily AI parsing limit. Please try again tomorrow or upgrade your plan.",
		Status:  http.StatusTooManyRequests,
	}
}

// ClarificationRequired carries the follow-up question for the end user.
func ClarificationRequired(question string) *Error {
	if question == "" {
		question = "Clarification required"
	}
	return &Error{
		Kind:    KindClarificationRequired,
		Code:    CodeClarificationRequired,
		Message: question,
		Status:  http.StatusBadRequest,
	}
}

// TranscriptionUnavailable reports a speech-to-text failure.
func TranscriptionUnavailable(err error) *Error {
	return &Error{
		Kind:    KindTranscriptionUnavailable,
		Code:    CodeTranscriptionUnavailable,
		Message: "Transcription service is currently unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// ExtractionProvider reports a language-model failure.
func ExtractionProvider(message string, err error) *Error {
	if message == "" {
		message = "AI provider service is currently unavailable"
	}
	return &Error{
		Kind:    KindExtractionProvider,
		Code:    CodeExtractionProvider,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status for err, 500 for unclassified errors.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine-readable code for err.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the client-facing message for err. Unclassified errors
// get a generic message so internal details do not leak.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred"
}
