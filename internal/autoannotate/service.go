// Package autoannotate labels dataset images with a vision model.
package autoannotate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dataset-m/dsm/internal/gemini"
	"github.com/dataset-m/dsm/internal/images"
	"github.com/dataset-m/dsm/internal/logger"
	"github.com/dataset-m/dsm/internal/ollama"
	"github.com/dataset-m/dsm/internal/openai"
	"github.com/dataset-m/dsm/internal/providers"
	"github.com/dataset-m/dsm/internal/recyclebin"
	"github.com/dataset-m/dsm/internal/yolo"
)

// NewProvider returns the named provider. An empty name falls back to
// DSM_PROVIDER and then to ollama. apiURL and apiKey may be empty to use the
// provider's environment defaults.
func NewProvider(name, apiURL, apiKey string) (providers.Provider, error) {
	if name == "" {
		name = os.Getenv("DSM_PROVIDER")
	}
	if name == "" {
		name = "ollama"
	}
	switch name {
	case "ollama":
		return ollama.New(apiURL), nil
	case "openai":
		return openai.New(apiURL, apiKey), nil
	case "gemini":
		return gemini.New(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		if m := os.Getenv("OPENAI_MODEL"); m != "" {
			return m
		}
		return "gpt-4o"
	case "ollama":
		if m := os.Getenv("OLLAMA_MODEL"); m != "" {
			return m
		}
		return "qwen2.5vl:7b"
	case "gemini":
		if m := os.Getenv("GEMINI_MODEL"); m != "" {
			return m
		}
		return "gemini-2.0-flash"
	default:
		return ""
	}
}

// Task describes one auto-annotation run over a folder
type Task struct {
	Dir         string
	Classes     []string
	Model       string
	Prompt      string
	Temperature float64
	Concurrency int
	// SkipExisting leaves images that already have a label file
	SkipExisting bool
}

// ImageResult is the outcome for one image
type ImageResult struct {
	Image   string `json:"image"`
	Boxes   int    `json:"boxes"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarises a run
type Report struct {
	RunID    string        `json:"run_id"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Results  []ImageResult `json:"results"`
}

// Counts returns how many images were labelled, skipped and failed
func (r *Report) Counts() (labelled, skipped, failed int) {
	for _, res := range r.Results {
		switch {
		case res.Error != "":
			failed++
		case res.Skipped:
			skipped++
		default:
			labelled++
		}
	}
	return labelled, skipped, failed
}

// Service runs vision prompts for every image of a folder
type Service struct {
	provider providers.Provider
	// labels/ is shared by all images of a folder
	writeMu sync.Mutex
}

func NewService(p providers.Provider) *Service {
	return &Service{provider: p}
}

// Run annotates every image directly inside task.Dir. Failures on single
// images are recorded in the report; only setup errors and cancellation are
// returned.
func (s *Service) Run(ctx context.Context, task Task) (*Report, error) {
	if task.Dir == "" {
		return nil, fmt.Errorf("no image folder given")
	}
	info, err := os.Stat(task.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open image folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", task.Dir)
	}
	if filepath.Base(task.Dir) == recyclebin.DirName {
		return nil, fmt.Errorf("refusing to annotate the recycle bin")
	}

	if task.Model == "" {
		task.Model = DefaultModel(s.provider.Name())
	}
	if task.Prompt == "" {
		task.Prompt = DefaultPrompt
	}
	if task.Concurrency < 1 {
		task.Concurrency = 1
	}

	paths, err := images.ListDir(task.Dir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    uuid.NewString(),
		Provider: s.provider.Name(),
		Model:    task.Model,
		Results:  make([]ImageResult, 0, len(paths)),
	}
	log := logger.S().With("run_id", report.RunID)
	log.Infow("Starting auto-annotation", "dir", task.Dir, "images", len(paths), "provider", report.Provider, "model", task.Model, "concurrency", task.Concurrency)

	system := BuildSystemPrompt(task.Classes)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, task.Concurrency)
	resultsChan := make(chan ImageResult, len(paths))

	for i, p := range paths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- ImageResult{Image: path, Error: ctx.Err().Error()}
				return
			}
			log.Infow("Processing image", "image", path, "progress", fmt.Sprintf("%d/%d", idx+1, len(paths)))
			resultsChan <- s.annotate(ctx, path, system, task)
		}(i, p)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for res := range resultsChan {
		if res.Error != "" {
			log.Warnw("Image failed", "image", res.Image, "error", res.Error)
		}
		report.Results = append(report.Results, res)
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Image < report.Results[j].Image
	})

	labelled, skipped, failed := report.Counts()
	log.Infow("Auto-annotation finished", "labelled", labelled, "skipped", skipped, "failed", failed)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) annotate(ctx context.Context, path, system string, task Task) ImageResult {
	res := ImageResult{Image: path}
	if task.SkipExisting && yolo.HasLabel(path) {
		res.Skipped = true
		return res
	}

	reply, err := s.provider.Detect(ctx, providers.Request{
		Model:       task.Model,
		Temperature: task.Temperature,
		System:      system,
		Prompt:      task.Prompt,
		ImagePath:   path,
	})
	if err != nil {
		res.Error = fmt.Sprintf("detection failed: %v", err)
		return res
	}

	lines := ParseResponse(reply, task.Classes)
	res.Boxes = len(lines)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := yolo.WriteText(path, strings.Join(lines, "\n"), task.Classes); err != nil {
		res.Error = err.Error()
	}
	return res
}
