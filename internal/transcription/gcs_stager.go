package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSStager stages audio locally and mirrors it to a GCS bucket so
// transcribers running against Vertex AI can reference it by gs:// URI.
// Release deletes both copies.
type GCSStager struct {
	client *storage.Client
	bucket string
	prefix string
	local  *LocalStager
}

// NewGCSStager creates a GCS-backed stager. Credentials come from
// Application Default Credentials.
func NewGCSStager(ctx context.Context, bucket, localDir string) (*GCSStager, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStager{
		client: client,
		bucket: bucket,
		prefix: "audio-staging",
		local:  NewLocalStager(localDir),
	}, nil
}

// Close closes the storage client.
func (s *GCSStager) Close() error {
	return s.client.Close()
}

func (s *GCSStager) Stage(ctx context.Context, audio Audio, maxBytes int64) (*Staged, error) {
	staged, err := s.local.Stage(ctx, audio, maxBytes)
	if err != nil {
		return nil, err
	}

	objectName := path.Join(s.prefix, uuid.NewString()+path.Ext(audio.Filename))
	if err := s.upload(ctx, objectName, staged.Path, staged.ContentType); err != nil {
		_ = staged.Release(ctx)
		return nil, err
	}

	localRelease := staged.release
	obj := s.client.Bucket(s.bucket).Object(objectName)
	staged.URI = fmt.Sprintf("gs://%s/%s", s.bucket, objectName)
	staged.release = func(ctx context.Context) error {
		errLocal := localRelease(ctx)
		errRemote := obj.Delete(ctx)
		if errors.Is(errRemote, storage.ErrObjectNotExist) {
			errRemote = nil
		}
		if errRemote != nil {
			errRemote = fmt.Errorf("delete %s: %w", objectName, errRemote)
		}
		return errors.Join(errLocal, errRemote)
	}
	return staged, nil
}

func (s *GCSStager) upload(ctx context.Context, objectName, filePath, contentType string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}
