package split

import (
	"fmt"
	"strings"
)

// Config is a saved split configuration
type Config struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	DatasetPath    string  `json:"dataset_path"`
	OutputPath     string  `json:"output_path"`
	TrainRatio     float64 `json:"train_ratio"`
	ValRatio       float64 `json:"val_ratio"`
	TestRatio      float64 `json:"test_ratio"`
	GenerateScript bool    `json:"generate_script"`
	TrainParams    string  `json:"train_params"`
}

// Validate checks a config before it is stored
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errMissing("name")
	}
	if c.DatasetPath == "" {
		return errMissing("dataset_path")
	}
	if c.OutputPath == "" {
		return errMissing("output_path")
	}
	return ValidateRatios(c.TrainRatio, c.ValRatio, c.TestRatio)
}

// Options converts the config into split options
func (c Config) Options() Options {
	return Options{
		DatasetPath: c.DatasetPath,
		OutputPath:  c.OutputPath,
		TrainRatio:  c.TrainRatio,
		ValRatio:    c.ValRatio,
		TestRatio:   c.TestRatio,
	}
}

func errMissing(field string) error {
	return fmt.Errorf("split config is missing %s", field)
}
