package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnnotationModeValid(t *testing.T) {
	assert.True(t, ModeRectangle.Valid())
	assert.True(t, ModePolygon.Valid())
	assert.False(t, AnnotationMode("circle").Valid())
}

func TestServerConfig(t *testing.T) {
	s := ServerConfig{Name: "gpu", Host: "10.0.0.5", Username: "train"}
	assert.Equal(t, "10.0.0.5:22", s.Addr())
	assert.NoError(t, s.Validate())

	s.Port = 2222
	assert.Equal(t, "10.0.0.5:2222", s.Addr())

	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"no name", ServerConfig{Host: "h", Username: "u"}},
		{"no host", ServerConfig{Name: "n", Username: "u"}},
		{"no user", ServerConfig{Name: "n", Host: "h"}},
		{"bad port", ServerConfig{Name: "n", Host: "h", Username: "u", Port: 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestTrainingTaskValidate(t *testing.T) {
	assert.NoError(t, TrainingTask{Name: "t", Type: TaskLocal}.Validate())
	assert.NoError(t, TrainingTask{Name: "t", Type: TaskRemote, ServerID: 1}.Validate())
	assert.Error(t, TrainingTask{Name: "t", Type: TaskRemote}.Validate())
	assert.Error(t, TrainingTask{Type: TaskLocal}.Validate())
	assert.Error(t, TrainingTask{Name: "t", Type: "CLOUD"}.Validate())
}
