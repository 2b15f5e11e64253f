// Package transcription turns uploaded audio into text through a
// speech-to-text provider.
package transcription

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes is the Whisper upload limit.
const DefaultMaxBytes int64 = 25 * 1024 * 1024

// DefaultFormats are the audio containers accepted by default.
var DefaultFormats = []string{"mp3", "wav", "m4a", "mp4", "webm", "ogg"}

var mimeFormats = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/wav":   "wav",
	"audio/wave":  "wav",
	"audio/x-wav": "wav",
	"audio/m4a":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/mp4":   "mp4",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
}

var formatMimes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
}

// Audio is an uploaded audio payload. Size is the declared size; the
// stager enforces the limit again while copying Body.
type Audio struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Format returns the container format named by the content type, falling
// back to the filename extension.
func (a Audio) Format() string {
	ct := strings.ToLower(strings.TrimSpace(a.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if f, ok := mimeFormats[ct]; ok {
		return f
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(a.Filename)), ".")
}

// MIMEType returns a content type suitable for the provider.
func (a Audio) MIMEType() string {
	if f, ok := formatMimes[a.Format()]; ok {
		return f
	}
	return "application/octet-stream"
}

func formatList(formats []string) string {
	return strings.Join(formats, ", ")
}

func sizeLabel(n int64) string {
	if n%(1024*1024) == 0 {
		return fmt.Sprintf("%dMB", n/(1024*1024))
	}
	return fmt.Sprintf("%d bytes", n)
}
