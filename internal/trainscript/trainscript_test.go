package trainscript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		raw     string
		kind    Kind
		literal string
	}{
		{"100", Int, "100"},
		{"0.01", Float, "0.01"},
		{"1.", Float, "1.0"},
		{"exp", String, `"exp"`},
		{"1.2.3", String, `"1.2.3"`},
		{"true", Bool, "True"},
		{"False", Bool, "False"},
		{"-3", Int, "-3"},
		{"yolov8n.pt", String, `"yolov8n.pt"`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p := Coerce("k", tt.raw)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.literal, p.Literal())
		})
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		order   []string
		wantErr bool
	}{
		{
			name:  "key=value separated by spaces",
			input: "epochs=100 lr0=0.01 name=exp",
			want:  map[string]string{"epochs": "100", "lr0": "0.01", "name": `"exp"`},
			order: []string{"epochs", "lr0", "name"},
		},
		{
			name:  "key value pairs across lines and commas",
			input: "epochs 50,\nbatch 16\nimgsz=640",
			want:  map[string]string{"epochs": "50", "batch": "16", "imgsz": "640"},
			order: []string{"epochs", "batch", "imgsz"},
		},
		{
			name:  "spaces around equals",
			input: "epochs = 10 lr0= 0.5",
			want:  map[string]string{"epochs": "10", "lr0": "0.5"},
			order: []string{"epochs", "lr0"},
		},
		{
			name:  "later key overrides",
			input: "epochs=1 batch=2 epochs=3",
			want:  map[string]string{"epochs": "3", "batch": "2"},
			order: []string{"epochs", "batch"},
		},
		{
			name:  "empty",
			input: "  \n ",
			want:  map[string]string{},
		},
		{
			name:    "dangling key",
			input:   "epochs=1 batch",
			wantErr: true,
		},
		{
			name:    "missing name",
			input:   "=5",
			wantErr: true,
		},
		{
			name:    "hyphenated name",
			input:   "lr-0=0.01",
			wantErr: true,
		},
		{
			name:    "name starting with a digit",
			input:   "epochs=1 0lr 0.1",
			wantErr: true,
		},
		{
			name:    "python keyword",
			input:   "class=1",
			wantErr: true,
		},
		{
			name:  "underscores allowed",
			input: "_warm_up2=3",
			want:  map[string]string{"_warm_up2": "3"},
			order: []string{"_warm_up2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseParams(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			got := map[string]string{}
			var order []string
			for _, p := range params {
				got[p.Key] = p.Literal()
				order = append(order, p.Key)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.order, order)
		})
	}
}

func TestRender(t *testing.T) {
	params, err := ParseParams("epochs=5 name=run")
	require.NoError(t, err)

	out := Render("m={{MODEL}} d={{DATA_YAML}}\n        {{PARAMS}}", Data{Params: params, DataYAML: "train.yml"})
	assert.Equal(t, "m=yolov8n.pt d=train.yml\n        epochs=5,\n        name=\"run\",", out)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()

	path, err := Generate(dir, "epochs=3 imgsz=320", "yolov8s.pt", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ScriptFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	script := string(data)

	assert.Contains(t, script, "epochs=3,")
	assert.Contains(t, script, "imgsz=320,")
	assert.Contains(t, script, `default="yolov8s.pt"`)
	assert.Contains(t, script, `"train.yml"`)
	assert.False(t, strings.Contains(script, "{{"), "unreplaced placeholder in script")

	_, err = Generate(dir, "epochs", "", "")
	assert.Error(t, err)
}

func TestGenerateRejectsInvalidKeys(t *testing.T) {
	out := t.TempDir()
	_, err := Generate(out, "epochs=5 lr-0=0.01", "", "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.NoFileExists(t, filepath.Join(out, ScriptFile))
}
