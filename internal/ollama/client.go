package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/prompts"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 60 * time.Second
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}

	// Parse the base URL
	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "ollama"),
	}, nil
}

// WithTimeout overrides the per-request timeout
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Name identifies the provider in logs, metrics and results
func (c *Client) Name() string {
	return "ollama:" + c.model
}

// GenerateResponse generates a non-streamed response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, system, prompt string) (string, error) {
	c.logger.Debug("sending request", "model", c.model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		System: system,
		Prompt: prompt,
		Format: json.RawMessage(`"json"`),
		Stream: new(bool), // false
		Options: map[string]any{
			"temperature": 0.3,
			"num_predict": 1000,
		},
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	c.logger.Debug("response received", "model", c.model, "chars", len(result))
	return result, nil
}

// DetectAIContent asks the model whether the text was written by an AI
func (c *Client) DetectAIContent(ctx context.Context, text string) (*models.ExternalAnalysis, error) {
	response, err := c.GenerateResponse(ctx, prompts.System, prompts.User(text))
	if err != nil {
		return nil, err
	}

	result, err := models.ParseExternalAnalysis(response)
	if err != nil {
		return nil, err
	}
	result.Source = c.Name()
	return result, nil
}
