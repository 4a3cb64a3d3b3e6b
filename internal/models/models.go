package models

import (
	"fmt"
	"time"
)

// AnnotationMode selects which shape a session draws
type AnnotationMode string

const (
	ModeRectangle AnnotationMode = "rectangle"
	ModePolygon   AnnotationMode = "polygon"
)

// Valid reports whether m is a known mode
func (m AnnotationMode) Valid() bool {
	return m == ModeRectangle || m == ModePolygon
}

// Session is the editing state of one API client
type Session struct {
	ID           string         `json:"id"`
	Mode         AnnotationMode `json:"mode"`
	CurrentImage string         `json:"current_image,omitempty"`
	Label        string         `json:"label,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ImageItem describes one dataset image served by the API
type ImageItem struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	HasLabel bool   `json:"has_label"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ServerConfig is a saved SSH server
type ServerConfig struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
}

// DefaultSSHPort is used when a server config has no port
const DefaultSSHPort = 22

// Addr returns host:port, defaulting the port to 22
func (s ServerConfig) Addr() string {
	port := s.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// Validate checks required fields
func (s ServerConfig) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("server config needs a name")
	case s.Host == "":
		return fmt.Errorf("server config needs a host")
	case s.Username == "":
		return fmt.Errorf("server config needs a username")
	case s.Port < 0 || s.Port > 65535:
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}

// TaskType says where a training task runs
type TaskType string

const (
	TaskLocal  TaskType = "LOCAL"
	TaskRemote TaskType = "REMOTE"
)

// TaskStatus is the lifecycle state of a training task
type TaskStatus string

const (
	StatusStopped   TaskStatus = "STOPPED"
	StatusRunning   TaskStatus = "RUNNING"
	StatusError     TaskStatus = "ERROR"
	StatusCompleted TaskStatus = "COMPLETED"
)

// TrainingTask is a saved training job
type TrainingTask struct {
	ID           int        `json:"task_id"`
	Name         string     `json:"name"`
	Type         TaskType   `json:"task_type"`
	DatasetPath  string     `json:"dataset_path"`
	SavePath     string     `json:"save_path"`
	ServerID     int        `json:"server_id,omitempty"`
	RemotePath   string     `json:"remote_path,omitempty"`
	CondaEnv     string     `json:"conda_env,omitempty"`
	Status       TaskStatus `json:"status"`
	ProcessID    int        `json:"process_id,omitempty"`
	ResultsPath  string     `json:"results_path,omitempty"`
	ExecutionLog string     `json:"execution_log,omitempty"`
}

// Validate checks a task before it is stored
func (t TrainingTask) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("training task needs a name")
	}
	switch t.Type {
	case TaskLocal:
	case TaskRemote:
		if t.ServerID == 0 {
			return fmt.Errorf("remote training task needs a server id")
		}
	default:
		return fmt.Errorf("unknown task type %q", t.Type)
	}
	return nil
}

// ModelConfig is a saved auto-annotation model setup
type ModelConfig struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	APIURL      string   `json:"api_url,omitempty"`
	Classes     []string `json:"classes"`
	Prompt      string   `json:"prompt,omitempty"`
	Temperature float64  `json:"temperature"`
}

// LogConfig is a saved training results location
type LogConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}
