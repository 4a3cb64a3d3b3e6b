package yolo

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/dataset-m/dsm/internal/annotation"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(imaging.New(w, h, color.NRGBA{G: 255, A: 255}), path))
}

func TestLabelPath(t *testing.T) {
	got := LabelPath(filepath.Join("data", "set", "a.b.jpg"))
	assert.Equal(t, filepath.Join("data", "set", "labels", "a.b.txt"), got)
	assert.Equal(t, filepath.Join("data", "labels", "classes.txt"), ClassesPath(filepath.Join("data", "x.png")))
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	writeImage(t, img, 200, 100)

	classes := annotation.NewClassList("car")
	anns := []annotation.Annotation{
		annotation.NewRectangle(50, 25, 100, 50, "truck"),
	}
	require.NoError(t, SaveImage(img, anns, classes))

	names, err := ReadClasses(ClassesPath(img))
	require.NoError(t, err)
	assert.Equal(t, []string{"car", "truck"}, names)

	data, err := os.ReadFile(LabelPath(img))
	require.NoError(t, err)
	assert.Equal(t, "1 0.500000 0.500000 0.500000 0.500000\n", string(data))

	loaded, err := Load(img, annotation.NewClassList(names...))
	require.NoError(t, err)
	assert.Equal(t, anns, loaded)
}

func TestLoadMissingLabel(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	writeImage(t, img, 10, 10)

	anns, err := Load(img, annotation.NewClassList())
	require.NoError(t, err)
	assert.Empty(t, anns)
}

func TestSaveEmptyRemovesLastLabel(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	writeImage(t, img, 100, 100)

	classes := annotation.NewClassList()
	require.NoError(t, Save(img, 100, 100, []annotation.Annotation{annotation.NewRectangle(0, 0, 10, 10, "x")}, classes))
	require.FileExists(t, LabelPath(img))

	require.NoError(t, Save(img, 100, 100, nil, classes))

	assert.NoFileExists(t, LabelPath(img))
	assert.NoFileExists(t, ClassesPath(img))
	assert.NoDirExists(t, filepath.Join(dir, LabelsDir))
}

func TestRemoveKeepsClassesWhileLabelsRemain(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")

	classes := annotation.NewClassList()
	box := []annotation.Annotation{annotation.NewRectangle(0, 0, 10, 10, "x")}
	require.NoError(t, Save(a, 100, 100, box, classes))
	require.NoError(t, Save(b, 100, 100, box, classes))

	require.NoError(t, Remove(a))
	assert.NoFileExists(t, LabelPath(a))
	assert.FileExists(t, ClassesPath(a))
	assert.FileExists(t, LabelPath(b))

	require.NoError(t, Remove(b))
	assert.NoDirExists(t, filepath.Join(dir, LabelsDir))
}

func TestRemoveWithoutLabels(t *testing.T) {
	assert.NoError(t, Remove(filepath.Join(t.TempDir(), "none.jpg")))
}

func TestReadClassesSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat\n\n dog \n"), 0o644))

	names, err := ReadClasses(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, names)
}

func TestFromLabelMe(t *testing.T) {
	doc := `{
		"imageWidth": 200,
		"imageHeight": 100,
		"shapes": [
			{"label": "car", "shape_type": "rectangle", "points": [[60, 40], [10, 20]]},
			{"label": "road", "shape_type": "polygon", "points": [[0, 0], [10, 0], [10, 10]]},
			{"label": "", "shape_type": "rectangle", "points": [[0, 0], [1, 1]]}
		],
		"labels": [{"name": "sign", "x1": 5, "y1": 6, "x2": 15, "y2": 26}]
	}`

	anns, w, h, err := FromLabelMe([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
	require.Len(t, anns, 3)
	assert.Equal(t, annotation.NewRectangle(10, 20, 50, 20, "car"), anns[0])
	assert.Equal(t, annotation.KindPolygon, anns[1].Kind)
	assert.Equal(t, annotation.NewRectangle(5, 6, 10, 20, "sign"), anns[2])

	_, _, _, err = FromLabelMe([]byte("{"))
	assert.Error(t, err)
}
