package evalcmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataset-m/dsm/internal/evaluation"
)

func sampleResults() *evaluation.Results {
	return &evaluation.Results{
		PredDir:   "pred",
		RefDir:    "ref",
		Threshold: 0.5,
		Images: []evaluation.ImageResult{
			{Name: "a.txt", Counts: evaluation.Counts{TP: 1, FN: 1}},
			{Name: "b.txt", Error: "permission denied"},
		},
		Classes: []evaluation.ClassResult{
			{ID: 0, Name: "cat", Counts: evaluation.Counts{TP: 1}, Precision: 1, Recall: 1, F1: 1},
			{ID: 1, Name: "dog", Counts: evaluation.Counts{FN: 1}},
		},
		Summary: evaluation.Summary{Images: 2, Failed: 1, TP: 1, FN: 1, Precision: 1, Recall: 0.5, F1: 2.0 / 3.0},
	}
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleResults(), "text"))
	out := buf.String()
	assert.Contains(t, out, "YOLO Label Evaluation Report")
	assert.Contains(t, out, "Recall:        50.00%")
	assert.Contains(t, out, "[0] cat")
	assert.Contains(t, out, "b.txt: permission denied")
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleResults(), "json"))

	var got evaluation.Results
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *sampleResults(), got)
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleResults(), "csv"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Class ID,Class,TP,FP,FN,Precision,Recall,F1", lines[0])
	assert.Equal(t, "0,cat,1,0,0,1.0000,1.0000,1.0000", lines[1])
	assert.Equal(t, ",all,1,0,1,1.0000,0.5000,0.6667", lines[3])
}

func TestWriteReportUnknownFormat(t *testing.T) {
	assert.Error(t, writeReport(&bytes.Buffer{}, sampleResults(), "xml"))
}

func TestRunCmd(t *testing.T) {
	pred := t.TempDir()
	ref := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pred, "a.txt"), []byte("0 0.5 0.5 0.2 0.2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ref, "a.txt"), []byte("0 0.5 0.5 0.2 0.2\n"), 0o644))
	out := filepath.Join(t.TempDir(), "results")

	var buf bytes.Buffer
	cmd := NewRunCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--pred", pred, "--ref", ref, "--output", out, "--format", "csv"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "0,class_0,1,0,0")

	buf.Reset()
	report := NewReportCmd()
	report.SetOut(&buf)
	report.SetArgs([]string{"--results", out, "--format", "text"})
	require.NoError(t, report.Execute())
	assert.Contains(t, buf.String(), "F1:            100.00%")
}

func TestRunCmdRequiresFolders(t *testing.T) {
	cmd := NewRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--pred", t.TempDir()})
	assert.Error(t, cmd.Execute())
}
