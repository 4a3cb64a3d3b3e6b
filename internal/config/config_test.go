package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirFromEnv(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	t.Setenv(HomeEnv, dir)

	got, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = EnsureDir()
	require.NoError(t, err)
	assert.DirExists(t, got)

	logPath, err := LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs", LogFile), logPath)
}

func TestDirDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, "")
	t.Setenv("HOME", home)

	got, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultDirName), got)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv("DSM_PROVIDER", "")
	t.Setenv("DSM_MODEL", "")

	s, err := LoadSettingsFile(filepath.Join(t.TempDir(), SettingsFile))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoadSettingsClampsValues(t *testing.T) {
	t.Setenv("DSM_PROVIDER", "")
	t.Setenv("DSM_MODEL", "")
	path := filepath.Join(t.TempDir(), SettingsFile)
	require.NoError(t, os.WriteFile(path, []byte("log_level: LOUD\nprovider: gemini\nconcurrency: 0\ntemperature: 9\nmodel: gemini-1.5-flash\n"), 0o644))

	s, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, Settings{
		LogLevel:    "info",
		Provider:    "gemini",
		Model:       "gemini-1.5-flash",
		Concurrency: 1,
		Temperature: 0.1,
	}, s)
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("DSM_PROVIDER", "openai")
	t.Setenv("DSM_MODEL", "gpt-4o-mini")

	s, err := LoadSettingsFile(filepath.Join(t.TempDir(), SettingsFile))
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4o-mini", s.Model)
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	t.Setenv("DSM_PROVIDER", "")
	t.Setenv("DSM_MODEL", "")
	path := filepath.Join(t.TempDir(), "nested", SettingsFile)
	in := Settings{LogLevel: "debug", Provider: "ollama", Model: "llava", Concurrency: 8, Temperature: 0.2}

	require.NoError(t, SaveSettings(path, in))
	out, err := LoadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadSettingsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	require.NoError(t, os.WriteFile(path, []byte("log_level: [unclosed"), 0o644))

	_, err := LoadSettingsFile(path)
	assert.Error(t, err)
}
