package transcription

import (
	"context"
	"errors"
)

// ErrNoText is returned by a transcriber when the provider response carries
// no text field at all, as opposed to an empty transcript.
var ErrNoText = errors.New("provider response has no text content")

// Transcriber sends staged audio to a speech-to-text provider.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio *Staged) (string, error)
}
