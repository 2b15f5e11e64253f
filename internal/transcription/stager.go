package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by a stager when the body exceeds its byte limit.
var ErrTooLarge = errors.New("audio exceeds size limit")

// Staged is audio written somewhere a transcriber can read it. Path is
// always a local file; URI is set when a remote copy exists as well.
type Staged struct {
	Path        string
	URI         string
	Filename    string
	ContentType string
	Size        int64

	release func(ctx context.Context) error
}

// Release removes every copy of the staged audio. Safe to call more than once.
func (s *Staged) Release(ctx context.Context) error {
	if s == nil || s.release == nil {
		return nil
	}
	fn := s.release
	s.release = nil
	return fn(ctx)
}

// Stager writes an audio payload to temporary storage.
type Stager interface {
	Stage(ctx context.Context, audio Audio, maxBytes int64) (*Staged, error)
}

// LocalStager stages audio in a temporary directory on local disk.
type LocalStager struct {
	Dir string
}

// NewLocalStager creates a stager writing to dir, or os.TempDir when dir is empty.
func NewLocalStager(dir string) *LocalStager {
	return &LocalStager{Dir: dir}
}

// Stage copies audio.Body into a new temp file. On any error nothing is
// left on disk.
func (s *LocalStager) Stage(ctx context.Context, audio Audio, maxBytes int64) (*Staged, error) {
	pattern := "audio-*"
	if ext := filepath.Ext(audio.Filename); ext != "" {
		pattern += ext
	}

	f, err := os.CreateTemp(s.Dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	n, err := io.Copy(f, io.LimitReader(audio.Body, maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	return &Staged{
		Path:        path,
		Filename:    audio.Filename,
		ContentType: audio.MIMEType(),
		Size:        n,
		release: func(context.Context) error {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove temp file %q: %w", path, err)
			}
			return nil
		},
	}, nil
}
