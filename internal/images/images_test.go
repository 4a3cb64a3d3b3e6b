package images

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := imaging.New(w, h, color.NRGBA{R: 200, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func TestIsImage(t *testing.T) {
	tests := map[string]bool{
		"a.png":       true,
		"b.JPG":       true,
		"c.Jpeg":      true,
		"d.gif":       false,
		"classes.txt": false,
		"noext":       false,
	}
	for name, want := range tests {
		if got := IsImage(name); got != want {
			t.Errorf("IsImage(%q) expected %v, got %v", name, want, got)
		}
	}
}

func TestFindSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "a.jpg"), 4, 4)
	writeImage(t, filepath.Join(root, "sub", "b.PNG"), 4, 4)
	writeImage(t, filepath.Join(root, "delete", "c.jpg"), 4, 4)
	writeImage(t, filepath.Join(root, "out", "d.jpg"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	found, err := Find(root, []string{"delete"}, filepath.Join(root, "out"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.jpg"),
		filepath.Join(root, "sub", "b.PNG"),
	}, found)
}

func TestDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writeImage(t, path, 64, 48)

	w, h, err := Dimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	_, _, err = Dimensions(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFitLongerSide(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))

	out := FitLongerSide(img, 50)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 25, out.Bounds().Dy())

	same := FitLongerSide(img, 400)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestResizeFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.jpg")
	dst := filepath.Join(dir, "small.jpg")
	writeImage(t, src, 300, 150)

	require.NoError(t, ResizeFile(src, dst, 100))

	w, h, err := Dimensions(dst)
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}
