package ollama

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dataset-m/dsm/internal/providers"
)

const defaultURL = "http://localhost:11434"

// Ollama is a provider for a local Ollama server
type Ollama struct {
	client  *resty.Client
	baseURL string
}

// New returns a provider talking to baseURL, or OLLAMA_URL, or localhost
func New(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_URL")
	}
	if baseURL == "" {
		baseURL = defaultURL
	}
	return &Ollama{
		client:  resty.New().SetTimeout(5 * time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (o *Ollama) Name() string { return "ollama" }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Detect runs the prompt with the image attached through /api/generate
func (o *Ollama) Detect(ctx context.Context, req providers.Request) (string, error) {
	body := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.ImagePath != "" {
		img, err := providers.ReadImage(req.ImagePath)
		if err != nil {
			return "", err
		}
		body.Images = []string{img.Base64()}
	}

	var out generateResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post(o.baseURL + "/api/generate")
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode(), resp.String())
	}
	return out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the models installed on the server
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	var out tagsResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(o.baseURL + "/api/tags")
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode(), resp.String())
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
