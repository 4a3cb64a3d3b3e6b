package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dataset-m/dsm/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAI is a provider for OpenAI compatible chat completion APIs
type OpenAI struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// New returns a provider. Empty arguments fall back to OPENAI_BASE_URL and
// OPENAI_API_KEY.
func New(baseURL, apiKey string) *OpenAI {
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return &OpenAI{
		client:  resty.New().SetTimeout(5 * time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (o *OpenAI) Name() string { return "openai" }

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Detect sends the prompt and the image as a data URL in one user message
func (o *OpenAI) Detect(ctx context.Context, req providers.Request) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	if req.ImagePath != "" {
		img, err := providers.ReadImage(req.ImagePath)
		if err != nil {
			return "", err
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img.DataURL()}})
	}

	var msgs []message
	if req.System != "" {
		msgs = append(msgs, message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, message{Role: "user", Content: parts})

	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(o.apiKey).
		SetBody(chatRequest{
			Model:       req.Model,
			Messages:    msgs,
			Temperature: req.Temperature,
			MaxTokens:   1000,
		}).
		SetResult(&out).
		Post(o.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}
	return out.Choices[0].Message.Content, nil
}
