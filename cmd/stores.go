package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dataset-m/dsm/internal/config"
	"github.com/dataset-m/dsm/internal/models"
	"github.com/dataset-m/dsm/internal/split"
	"github.com/dataset-m/dsm/internal/store"
)

func storePath(name string) (string, error) {
	if _, err := config.EnsureDir(); err != nil {
		return "", err
	}
	return config.Path(name)
}

func openList[T any](name string, id func(*T) *int) (*store.List[T], error) {
	p, err := storePath(name)
	if err != nil {
		return nil, err
	}
	return store.New(p, id), nil
}

func splitConfigs() (*store.List[split.Config], error) {
	return openList(store.SplitConfigsFile, func(c *split.Config) *int { return &c.ID })
}

func serverConfigs() (*store.List[models.ServerConfig], error) {
	return openList(store.ServerConfigsFile, func(s *models.ServerConfig) *int { return &s.ID })
}

func trainingTasks() (*store.List[models.TrainingTask], error) {
	return openList(store.TrainingTasksFile, func(t *models.TrainingTask) *int { return &t.ID })
}

func modelConfigs() (*store.List[models.ModelConfig], error) {
	return openList(store.ModelConfigsFile, func(m *models.ModelConfig) *int { return &m.ID })
}

func logConfigs() (*store.List[models.LogConfig], error) {
	return openList(store.LogConfigsFile, func(l *models.LogConfig) *int { return &l.ID })
}

func importedPaths() (*store.Strings, error) {
	p, err := storePath(store.ImportedPathsFile)
	if err != nil {
		return nil, err
	}
	return store.NewStrings(p), nil
}

// findByRef looks a record up by numeric id or by name
func findByRef[T any](l *store.List[T], ref string, name func(T) string) (T, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		return l.Get(id)
	}
	item, err := l.Find(func(it T) bool { return name(it) == ref })
	if err != nil {
		return item, fmt.Errorf("%q: %w", ref, err)
	}
	return item, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
