package autoannotate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-m/dsm/internal/ollama"
	"github.com/dataset-m/dsm/internal/providers"
	"github.com/dataset-m/dsm/internal/yolo"
)

type fakeProvider struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]bool
	seen    []providers.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Detect(_ context.Context, req providers.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req)
	base := filepath.Base(req.ImagePath)
	if f.fail[base] {
		return "", errors.New("model offline")
	}
	return f.replies[base], nil
}

func writeImages(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("img"), 0o644))
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	assert.Equal(t, systemPrompt, BuildSystemPrompt(nil))

	p := BuildSystemPrompt([]string{"cat", "dog"})
	assert.Contains(t, p, "0: cat\n1: dog\n")
	assert.Contains(t, p, "Use only the class ids listed above.")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		classes []string
		want    []string
	}{
		{
			name:  "plain lines",
			reply: "0 0.5 0.5 0.2 0.2\n1 0.1 0.2 0.3 0.4",
			want:  []string{"0 0.500000 0.500000 0.200000 0.200000", "1 0.100000 0.200000 0.300000 0.400000"},
		},
		{
			name:  "code fence and chatter",
			reply: "```\nHere you go\n0 0.5 0.5 0.2 0.2\n```",
			want:  []string{"0 0.500000 0.500000 0.200000 0.200000"},
		},
		{
			name:  "out of range values dropped",
			reply: "0 1.5 0.5 0.2 0.2\n0 0.5 -0.1 0.2 0.2\n0 0.5 0.5 0.2 0.2",
			want:  []string{"0 0.500000 0.500000 0.200000 0.200000"},
		},
		{
			name:  "float class id",
			reply: "2.0 0 0 1 1",
			want:  []string{"2 0.000000 0.000000 1.000000 1.000000"},
		},
		{
			name:    "class outside list dropped",
			reply:   "0 0.5 0.5 0.2 0.2\n3 0.5 0.5 0.2 0.2",
			classes: []string{"cat", "dog"},
			want:    []string{"0 0.500000 0.500000 0.200000 0.200000"},
		},
		{
			name:  "wrong field count and text",
			reply: "0 0.5 0.5 0.2\ncat 0.5 0.5 0.2 0.2\n0 0 5 0.5 0.1 0.1",
		},
		{name: "empty", reply: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResponse(tt.reply, tt.classes))
		})
	}
}

func TestNewProvider(t *testing.T) {
	t.Setenv("DSM_PROVIDER", "")
	p, err := NewProvider("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	for _, name := range []string{"ollama", "openai", "gemini"} {
		p, err := NewProvider(name, "", "")
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err = NewProvider("claude-vision", "", "")
	assert.Error(t, err)
}

func TestDefaultModel(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")
	assert.Equal(t, "gpt-4o", DefaultModel("openai"))
	t.Setenv("OPENAI_MODEL", "gpt-4.1")
	assert.Equal(t, "gpt-4.1", DefaultModel("openai"))
	assert.Empty(t, DefaultModel("unknown"))
}

func TestRunWritesLabels(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg", "b.jpg", "c.png", "notes.txt")

	fp := &fakeProvider{
		replies: map[string]string{
			"a.jpg": "0 0.5 0.5 0.2 0.2\n1 0.2 0.2 0.1 0.1",
			"b.jpg": "nothing here",
		},
		fail: map[string]bool{"c.png": true},
	}
	svc := NewService(fp)
	report, err := svc.Run(context.Background(), Task{
		Dir:         dir,
		Classes:     []string{"cat", "dog"},
		Model:       "m1",
		Concurrency: 2,
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "fake", report.Provider)

	labelled, skipped, failed := report.Counts()
	assert.Equal(t, 2, labelled)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 1, failed)

	data, err := os.ReadFile(yolo.LabelPath(filepath.Join(dir, "a.jpg")))
	require.NoError(t, err)
	assert.Equal(t, "0 0.500000 0.500000 0.200000 0.200000\n1 0.200000 0.200000 0.100000 0.100000\n", string(data))

	classes, err := yolo.ReadClasses(filepath.Join(dir, yolo.LabelsDir, yolo.ClassesFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, classes)

	assert.False(t, yolo.HasLabel(filepath.Join(dir, "b.jpg")))

	require.Len(t, fp.seen, 3)
	for _, req := range fp.seen {
		assert.Equal(t, "m1", req.Model)
		assert.Equal(t, DefaultPrompt, req.Prompt)
		assert.Contains(t, req.System, "1: dog")
	}
}

func TestRunSkipExisting(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg", "b.jpg")
	require.NoError(t, yolo.WriteText(filepath.Join(dir, "a.jpg"), "0 0.1 0.1 0.1 0.1", []string{"cat"}))

	fp := &fakeProvider{replies: map[string]string{"b.jpg": "0 0.5 0.5 0.5 0.5"}}
	report, err := NewService(fp).Run(context.Background(), Task{Dir: dir, Classes: []string{"cat"}, SkipExisting: true})
	require.NoError(t, err)

	_, skipped, _ := report.Counts()
	assert.Equal(t, 1, skipped)
	require.Len(t, fp.seen, 1)
	assert.Equal(t, "b.jpg", filepath.Base(fp.seen[0].ImagePath))
	assert.Equal(t, "fake", report.Provider)
}

func TestRunRejectsBadFolder(t *testing.T) {
	svc := NewService(&fakeProvider{})
	_, err := svc.Run(context.Background(), Task{})
	assert.Error(t, err)

	_, err = svc.Run(context.Background(), Task{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	bin := filepath.Join(t.TempDir(), "delete")
	require.NoError(t, os.Mkdir(bin, 0o755))
	_, err = svc.Run(context.Background(), Task{Dir: bin})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, "a.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewService(&fakeProvider{}).Run(ctx, Task{Dir: dir})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 1)
	assert.NotEmpty(t, report.Results[0].Error)
}

func TestRunAgainstOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "llava", body["model"])
		system, _ := body["system"].(string)
		assert.True(t, strings.Contains(system, "0: person"))
		assert.Len(t, body["images"], 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "0 0.25 0.25 0.5 0.5"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeImages(t, dir, "p.jpg")

	report, err := NewService(ollama.New(srv.URL)).Run(context.Background(), Task{
		Dir:     dir,
		Classes: []string{"person"},
		Model:   "llava",
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Results[0].Boxes)
	assert.True(t, yolo.HasLabel(filepath.Join(dir, "p.jpg")))
}
