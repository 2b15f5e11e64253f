package transcription

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageFile(t *testing.T, name, content string) *Staged {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &Staged{Path: path, Filename: name, ContentType: "audio/mpeg", Size: int64(len(content))}
}

func TestWhisperTranscriber_SendsExpectedForm(t *testing.T) {
	var gotModel, gotLanguage, gotFormat, gotAuth string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		gotAuth = r.Header.Get("Authorization")
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")

		if f, _, err := r.FormFile("file"); assert.NoError(t, err) {
			gotFile, _ = io.ReadAll(f)
			f.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "bought coffee for 4 dollars"})
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber("test-key", srv.URL+"/", "")
	text, err := tr.Transcribe(context.Background(), stageFile(t, "note.mp3", "audio-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "bought coffee for 4 dollars", text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, DefaultWhisperModel, gotModel)
	assert.Equal(t, "en", gotLanguage)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "audio-bytes", string(gotFile))
}

func TestWhisperTranscriber_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber("k", srv.URL+"/", "")
	_, err := tr.Transcribe(context.Background(), stageFile(t, "a.mp3", "x"))
	require.Error(t, err)
}

func TestWhisperTranscriber_MissingFile(t *testing.T) {
	tr := NewWhisperTranscriber("k", "http://127.0.0.1:0/", "")
	_, err := tr.Transcribe(context.Background(), &Staged{Path: filepath.Join(t.TempDir(), "gone.mp3")})
	require.Error(t, err)
}
