// Package images finds dataset images on disk and reads, resizes and writes them.
package images

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// Extensions recognised as dataset images, lower case
var Extensions = []string{".png", ".jpg", ".jpeg"}

// IsImage reports whether path has an image extension, case-insensitively
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Find walks root recursively and returns every image path in lexical order.
// Directories whose base name is in skipNames, or whose path is in skipPaths,
// are not entered.
func Find(root string, skipNames []string, skipPaths ...string) ([]string, error) {
	skipAbs := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		if abs, err := filepath.Abs(p); err == nil {
			skipAbs[abs] = true
		}
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, n := range skipNames {
				if d.Name() == n {
					return filepath.SkipDir
				}
			}
			if abs, err := filepath.Abs(path); err == nil && skipAbs[abs] {
				return filepath.SkipDir
			}
			return nil
		}
		if IsImage(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// ListDir returns the images directly inside dir, sorted by name
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// Dimensions decodes only the image header of path
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Load decodes the image at path, applying EXIF orientation
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img by the extension of path. JPEG output uses quality.
func Save(path string, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}

// FitLongerSide scales img down so its longer side is at most longer pixels.
// Smaller images are returned unchanged.
func FitLongerSide(img image.Image, longer int) image.Image {
	b := img.Bounds()
	if longer <= 0 || (b.Dx() <= longer && b.Dy() <= longer) {
		return img
	}
	return imaging.Fit(img, longer, longer, imaging.Lanczos)
}

// Thumbnail returns a size x size center crop scaled thumbnail
func Thumbnail(img image.Image, size int) image.Image {
	return imaging.Thumbnail(img, size, size, imaging.CatmullRom)
}

// ResizeFile re-encodes src at dst with its longer side capped at longer pixels
func ResizeFile(src, dst string, longer int) error {
	img, err := Load(src)
	if err != nil {
		return err
	}
	return Save(dst, FitLongerSide(img, longer), 95)
}
