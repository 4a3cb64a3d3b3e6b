package yolo

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataset-m/dsm/internal/annotation"
	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/logger"
)

const (
	// LabelsDir is the directory holding label files next to the images
	LabelsDir = "labels"
	// ClassesFile lists class names, one per line, in id order
	ClassesFile = "classes.txt"
)

// LabelPath returns dir/labels/<base>.txt for the image dir/<base>.<ext>
func LabelPath(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	return filepath.Join(filepath.Dir(imagePath), LabelsDir, base+".txt")
}

// ClassesPath returns the classes.txt that belongs to imagePath
func ClassesPath(imagePath string) string {
	return filepath.Join(filepath.Dir(imagePath), LabelsDir, ClassesFile)
}

// HasLabel reports whether a label file exists for imagePath
func HasLabel(imagePath string) bool {
	_, err := os.Stat(LabelPath(imagePath))
	return err == nil
}

// Save writes the labels for an image of w x h pixels and refreshes
// labels/classes.txt. An empty annotation list removes the label file instead.
func Save(imagePath string, w, h int, anns []annotation.Annotation, classes *annotation.ClassList) error {
	if len(anns) == 0 {
		return Remove(imagePath)
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image size %dx%d for %s", w, h, imagePath)
	}

	text := Encode(w, h, anns, classes)

	labelsDir := filepath.Join(filepath.Dir(imagePath), LabelsDir)
	if err := os.MkdirAll(labelsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create labels directory: %w", err)
	}
	if err := WriteClasses(filepath.Join(labelsDir, ClassesFile), classes.Names()); err != nil {
		return err
	}
	if err := writeFileAtomic(LabelPath(imagePath), []byte(text)); err != nil {
		return fmt.Errorf("failed to write label file: %w", err)
	}
	return nil
}

// WriteText stores already normalised label lines for imagePath together with
// the class names. Empty text removes the label file.
func WriteText(imagePath, text string, classNames []string) error {
	if strings.TrimSpace(text) == "" {
		return Remove(imagePath)
	}
	labelsDir := filepath.Join(filepath.Dir(imagePath), LabelsDir)
	if err := os.MkdirAll(labelsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create labels directory: %w", err)
	}
	if len(classNames) > 0 {
		if err := WriteClasses(filepath.Join(labelsDir, ClassesFile), classNames); err != nil {
			return err
		}
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := writeFileAtomic(LabelPath(imagePath), []byte(text)); err != nil {
		return fmt.Errorf("failed to write label file: %w", err)
	}
	return nil
}

// SaveImage is Save with the size read from the image header
func SaveImage(imagePath string, anns []annotation.Annotation, classes *annotation.ClassList) error {
	if len(anns) == 0 {
		return Remove(imagePath)
	}
	w, h, err := images.Dimensions(imagePath)
	if err != nil {
		return err
	}
	return Save(imagePath, w, h, anns, classes)
}

// Load reads the labels of imagePath. A missing label file yields no
// annotations and no error.
func Load(imagePath string, classes *annotation.ClassList) ([]annotation.Annotation, error) {
	data, err := os.ReadFile(LabelPath(imagePath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}
	w, h, err := images.Dimensions(imagePath)
	if err != nil {
		return nil, err
	}
	return Decode(string(data), w, h, classes), nil
}

// Remove deletes the label file of imagePath. The labels directory is removed
// when it ends up empty, and classes.txt is removed once no label files remain.
func Remove(imagePath string) error {
	labelsDir := filepath.Join(filepath.Dir(imagePath), LabelsDir)

	if err := os.Remove(LabelPath(imagePath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove label file: %w", err)
	}

	entries, err := os.ReadDir(labelsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read labels directory: %w", err)
	}
	if len(entries) == 0 {
		return os.Remove(labelsDir)
	}

	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") && e.Name() != ClassesFile {
			return nil
		}
	}
	classesPath := filepath.Join(labelsDir, ClassesFile)
	if err := os.Remove(classesPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove classes file: %w", err)
	}
	logger.S().Debugw("Removed classes file, no labels left", "dir", labelsDir)
	return nil
}

// ReadClasses reads a classes.txt, dropping blank lines
func ReadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return names, nil
}

// WriteClasses writes one class name per line
func WriteClasses(path string, names []string) error {
	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(n)
		sb.WriteByte('\n')
	}
	if err := writeFileAtomic(path, []byte(sb.String())); err != nil {
		return fmt.Errorf("failed to write classes file: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
