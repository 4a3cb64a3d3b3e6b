package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	a := Box{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}
	tests := []struct {
		name string
		b    Box
		want float64
	}{
		{"identical", a, 1},
		{"disjoint", Box{X1: 0.6, Y1: 0.6, X2: 1, Y2: 1}, 0},
		{"touching edge", Box{X1: 0.5, Y1: 0, X2: 1, Y2: 0.5}, 0},
		{"half overlap", Box{X1: 0.25, Y1: 0, X2: 0.75, Y2: 0.5}, 1.0 / 3.0},
		{"contained quarter", Box{X1: 0, Y1: 0, X2: 0.25, Y2: 0.25}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(a, tt.b), 1e-9)
		})
	}
}

func TestParseBoxes(t *testing.T) {
	text := "0 0.5 0.5 0.2 0.4\n" +
		"1 0 3 0.1 0.1 0.3 0.2 0.2 0.5\n" +
		"bad line\n" +
		"2 0.5 0.5 0 0.1\n" +
		"1.0 0.25 0.25 0.5 0.5\n"
	boxes := ParseBoxes(text)
	require.Len(t, boxes, 3)

	assert.Equal(t, 0, boxes[0].Class)
	assert.InDelta(t, 0.4, boxes[0].X1, 1e-9)
	assert.InDelta(t, 0.3, boxes[0].Y1, 1e-9)
	assert.InDelta(t, 0.6, boxes[0].X2, 1e-9)
	assert.InDelta(t, 0.7, boxes[0].Y2, 1e-9)

	assert.Equal(t, Box{Class: 1, X1: 0.1, Y1: 0.1, X2: 0.3, Y2: 0.5}, boxes[1])
	assert.Equal(t, 1, boxes[2].Class)
}

func TestCountsMetrics(t *testing.T) {
	c := Counts{TP: 3, FP: 1, FN: 2}
	assert.InDelta(t, 0.75, c.Precision(), 1e-9)
	assert.InDelta(t, 0.6, c.Recall(), 1e-9)
	assert.InDelta(t, 2*0.75*0.6/1.35, c.F1(), 1e-9)

	var zero Counts
	assert.Zero(t, zero.Precision())
	assert.Zero(t, zero.Recall())
	assert.Zero(t, zero.F1())
}

func TestMatch(t *testing.T) {
	ref := []Box{
		{Class: 0, X1: 0, Y1: 0, X2: 0.2, Y2: 0.2},
		{Class: 0, X1: 0.5, Y1: 0.5, X2: 0.7, Y2: 0.7},
		{Class: 1, X1: 0.8, Y1: 0.8, X2: 1, Y2: 1},
	}
	pred := []Box{
		{Class: 0, X1: 0, Y1: 0, X2: 0.2, Y2: 0.2},
		// duplicate of the first reference; can only match once
		{Class: 0, X1: 0.01, Y1: 0.01, X2: 0.2, Y2: 0.2},
		// right place, wrong class
		{Class: 2, X1: 0.8, Y1: 0.8, X2: 1, Y2: 1},
	}

	counts, ious := Match(pred, ref, 0.5)
	assert.Equal(t, Counts{TP: 1, FP: 1, FN: 1}, counts[0])
	assert.Equal(t, Counts{FN: 1}, counts[1])
	assert.Equal(t, Counts{FP: 1}, counts[2])
	require.Len(t, ious, 1)
	assert.InDelta(t, 1, ious[0], 1e-9)
}

func TestMatchBelowThreshold(t *testing.T) {
	ref := []Box{{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}}
	pred := []Box{{X1: 0.25, Y1: 0, X2: 0.75, Y2: 0.5}}

	counts, _ := Match(pred, ref, 0.5)
	assert.Equal(t, Counts{FP: 1, FN: 1}, counts[0])

	counts, _ = Match(pred, ref, 0.3)
	assert.Equal(t, Counts{TP: 1}, counts[0])
}

func writeLabel(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCompare(t *testing.T) {
	pred := t.TempDir()
	ref := t.TempDir()
	refLabels := filepath.Join(ref, "labels")

	writeLabel(t, refLabels, "classes.txt", "cat\ndog\n")
	writeLabel(t, refLabels, "a.txt", "0 0.5 0.5 0.2 0.2\n1 0.2 0.2 0.1 0.1\n")
	writeLabel(t, refLabels, "b.txt", "1 0.5 0.5 0.5 0.5\n")
	writeLabel(t, pred, "a.txt", "0 0.5 0.5 0.2 0.2\n")
	writeLabel(t, pred, "c.txt", "0 0.5 0.5 0.2 0.2\n")

	res, err := Compare(pred, ref, DefaultIoU)
	require.NoError(t, err)

	require.Len(t, res.Images, 3)
	assert.Equal(t, "a.txt", res.Images[0].Name)
	assert.Equal(t, Counts{TP: 1, FN: 1}, res.Images[0].Counts)
	assert.Equal(t, Counts{FN: 1}, res.Images[1].Counts)
	assert.Equal(t, Counts{FP: 1}, res.Images[2].Counts)

	require.Len(t, res.Classes, 2)
	assert.Equal(t, "cat", res.Classes[0].Name)
	assert.Equal(t, Counts{TP: 1, FP: 1}, res.Classes[0].Counts)
	assert.InDelta(t, 0.5, res.Classes[0].Precision, 1e-9)
	assert.Equal(t, "dog", res.Classes[1].Name)
	assert.Equal(t, Counts{FN: 2}, res.Classes[1].Counts)

	s := res.Summary
	assert.Equal(t, 3, s.Images)
	assert.Equal(t, 1, s.TP)
	assert.Equal(t, 1, s.FP)
	assert.Equal(t, 3, s.FN)
	assert.InDelta(t, 0.5, s.Precision, 1e-9)
	assert.InDelta(t, 0.25, s.Recall, 1e-9)
	assert.InDelta(t, 1, s.MeanIoU, 1e-9)
}

func TestCompareErrors(t *testing.T) {
	_, err := Compare(t.TempDir(), t.TempDir(), 0)
	assert.Error(t, err)

	_, err = Compare(filepath.Join(t.TempDir(), "missing"), t.TempDir(), 0.5)
	assert.Error(t, err)
}

func TestSaveAndLoadResults(t *testing.T) {
	dir := t.TempDir()
	in := &Results{
		PredDir:   "p",
		RefDir:    "r",
		Threshold: 0.5,
		Images:    []ImageResult{{Name: "a.txt", Counts: Counts{TP: 2}}},
		Summary:   Summary{Images: 1, TP: 2, Precision: 1, Recall: 1, F1: 1},
	}
	require.NoError(t, SaveResults(in, dir))

	out, err := LoadResults(dir)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
