package split

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dataset-m/dsm/internal/yolo"
)

// ManifestFile is the name of the dataset manifest written at the output root
const ManifestFile = "train.yml"

// Manifest is the YOLO dataset description consumed by training
type Manifest struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// WriteManifest writes train.yml into out. Class names are read back from
// train/labels/classes.txt.
func WriteManifest(out string) (string, error) {
	names, err := yolo.ReadClasses(filepath.Join(out, Train, yolo.LabelsDir, yolo.ClassesFile))
	if err != nil {
		return "", fmt.Errorf("failed to read train classes: %w", err)
	}

	m := Manifest{
		Path:  ".",
		Train: Train + "/images",
		Val:   Val + "/images",
		Test:  Test + "/images",
		NC:    len(names),
		Names: names,
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	path := filepath.Join(out, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return path, nil
}

// LoadManifest parses a train.yml
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
