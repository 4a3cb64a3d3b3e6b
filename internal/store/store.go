// Package store keeps small lists of records as JSON array files. Every
// mutation loads the whole file and rewrites it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File names inside the app directory
const (
	SplitConfigsFile  = "split_configs.json"
	ServerConfigsFile = "server_configs.json"
	ImportedPathsFile = "imported_paths.json"
	TrainingTasksFile = "training_tasks.json"
	ModelConfigsFile  = "model_configs.json"
	LogConfigsFile    = "log_configs.json"
)

var ErrNotFound = errors.New("record not found")

// List is a JSON array of T on disk. id returns a pointer to the record's
// integer id field so the list can assign and look up ids.
type List[T any] struct {
	path string
	id   func(*T) *int
	mu   sync.Mutex
}

// New returns a list stored at path
func New[T any](path string, id func(*T) *int) *List[T] {
	return &List[T]{path: path, id: id}
}

// Path is the backing file
func (l *List[T]) Path() string { return l.path }

// All loads every record. A missing file is an empty list.
func (l *List[T]) All() ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Get returns the record with id
func (l *List[T]) Get(id int) (T, error) {
	var zero T
	items, err := l.All()
	if err != nil {
		return zero, err
	}
	for i := range items {
		if *l.id(&items[i]) == id {
			return items[i], nil
		}
	}
	return zero, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// Find returns the first record matching fn
func (l *List[T]) Find(fn func(T) bool) (T, error) {
	var zero T
	items, err := l.All()
	if err != nil {
		return zero, err
	}
	for _, it := range items {
		if fn(it) {
			return it, nil
		}
	}
	return zero, ErrNotFound
}

// Add assigns the next id (max+1) to item, appends it and saves. The stored
// record is returned.
func (l *List[T]) Add(item T) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load()
	if err != nil {
		return item, err
	}
	next := 1
	for i := range items {
		if id := *l.id(&items[i]); id >= next {
			next = id + 1
		}
	}
	*l.id(&item) = next
	items = append(items, item)
	if err := l.save(items); err != nil {
		return item, err
	}
	return item, nil
}

// Update replaces the record with the same id
func (l *List[T]) Update(item T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load()
	if err != nil {
		return err
	}
	id := *l.id(&item)
	for i := range items {
		if *l.id(&items[i]) == id {
			items[i] = item
			return l.save(items)
		}
	}
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// Delete removes the record with id
func (l *List[T]) Delete(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load()
	if err != nil {
		return err
	}
	for i := range items {
		if *l.id(&items[i]) == id {
			items = append(items[:i], items[i+1:]...)
			return l.save(items)
		}
	}
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

func (l *List[T]) load() ([]T, error) {
	return readJSON[T](l.path)
}

func (l *List[T]) save(items []T) error {
	return writeJSON(l.path, items)
}

// Strings is a JSON array of unique strings, such as imported folder paths
type Strings struct {
	path string
	mu   sync.Mutex
}

// NewStrings returns a string list stored at path
func NewStrings(path string) *Strings {
	return &Strings{path: path}
}

// All loads the list
func (s *Strings) All() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readJSON[string](s.path)
}

// Add appends v unless it is already present. It reports whether v was added.
func (s *Strings) Add(v string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := readJSON[string](s.path)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it == v {
			return false, nil
		}
	}
	return true, writeJSON(s.path, append(items, v))
}

// Remove deletes v from the list
func (s *Strings) Remove(v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := readJSON[string](s.path)
	if err != nil {
		return err
	}
	for i, it := range items {
		if it == v {
			return writeJSON(s.path, append(items[:i], items[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, v)
}

func readJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var items []T
	if len(data) == 0 {
		return []T{}, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func writeJSON[T any](path string, items []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(items); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
