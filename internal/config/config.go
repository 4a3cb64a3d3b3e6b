// Package config locates the per-user application directory and loads
// settings.yaml from it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// HomeEnv overrides the application directory
	HomeEnv = "DSM_HOME"
	// DefaultDirName is created under the user's home directory
	DefaultDirName = ".dataset_m"
	// SettingsFile holds Settings as YAML
	SettingsFile = "settings.yaml"
	// LogFile is written below the logs directory
	LogFile = "dataset_manager.log"
)

// Dir returns the application directory without creating it
func Dir() (string, error) {
	if d := os.Getenv(HomeEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// EnsureDir returns the application directory, creating it when missing
func EnsureDir() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}
	return d, nil
}

// Path joins name onto the application directory
func Path(name string) (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, name), nil
}

// LogPath is <app dir>/logs/dataset_manager.log
func LogPath() (string, error) {
	return Path(filepath.Join("logs", LogFile))
}

// Settings are user preferences shared by all commands
type Settings struct {
	LogLevel    string  `yaml:"log_level"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Concurrency int     `yaml:"concurrency"`
	Temperature float64 `yaml:"temperature"`
}

// Defaults returns the settings used when settings.yaml is absent
func Defaults() Settings {
	return Settings{
		LogLevel:    "info",
		Provider:    "ollama",
		Concurrency: 4,
		Temperature: 0.1,
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate clamps out of range values back to defaults
func (s *Settings) Validate() {
	d := Defaults()
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	if !validLevels[s.LogLevel] {
		s.LogLevel = d.LogLevel
	}
	if s.Provider == "" {
		s.Provider = d.Provider
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.Concurrency > 64 {
		s.Concurrency = 64
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		s.Temperature = d.Temperature
	}
}

// ApplyEnv overrides provider and model from DSM_PROVIDER and DSM_MODEL
func (s *Settings) ApplyEnv() {
	if p := os.Getenv("DSM_PROVIDER"); p != "" {
		s.Provider = p
	}
	if m := os.Getenv("DSM_MODEL"); m != "" {
		s.Model = m
	}
}

// LoadSettings reads settings.yaml from the application directory. A missing
// file yields Defaults.
func LoadSettings() (Settings, error) {
	path, err := Path(SettingsFile)
	if err != nil {
		return Defaults(), err
	}
	return LoadSettingsFile(path)
}

// LoadSettingsFile reads the settings at path over the defaults
func LoadSettingsFile(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.ApplyEnv()
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("failed to parse settings: %w", err)
	}
	s.ApplyEnv()
	s.Validate()
	return s, nil
}

// SaveSettings writes s to path as YAML
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
