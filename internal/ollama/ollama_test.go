package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-m/dsm/internal/providers"
)

func TestNewFallsBackToEnv(t *testing.T) {
	t.Setenv("OLLAMA_URL", "")
	assert.Equal(t, defaultURL, New("").baseURL)

	t.Setenv("OLLAMA_URL", "http://gpu-box:11434/")
	assert.Equal(t, "http://gpu-box:11434", New("").baseURL)
	assert.Equal(t, "http://other", New("http://other").baseURL)
}

func TestDetect(t *testing.T) {
	img := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(img, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "llava", req.Model)
		assert.Equal(t, "find cats", req.Prompt)
		assert.Equal(t, "be terse", req.System)
		assert.False(t, req.Stream)
		assert.Equal(t, []string{"iVBORw=="}, req.Images)
		assert.InDelta(t, 0.2, req.Options["temperature"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "0 0.5 0.5 0.1 0.1"})
	}))
	defer srv.Close()

	out, err := New(srv.URL).Detect(context.Background(), providers.Request{
		Model:       "llava",
		Temperature: 0.2,
		System:      "be terse",
		Prompt:      "find cats",
		ImagePath:   img,
	})
	require.NoError(t, err)
	assert.Equal(t, "0 0.5 0.5 0.1 0.1", out)
}

func TestDetectServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Detect(context.Background(), providers.Request{Model: "nope", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llava:7b"},{"name":"qwen2.5vl:7b"}]}`))
	}))
	defer srv.Close()

	names, err := New(srv.URL).Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llava:7b", "qwen2.5vl:7b"}, names)
}
