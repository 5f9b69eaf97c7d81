// Package openrouter calls an OpenRouter-compatible chat completions endpoint
// for a second opinion on whether text is machine generated.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/prompts"
)

const (
	DefaultURL     = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel   = "openai/gpt-4o-mini"
	DefaultTimeout = 30 * time.Second

	temperature = 0.3
	maxTokens   = 1000
	maxAttempts = 3
)

// Request is a chat completions request body
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the subset of a chat completions response we read
type Response struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Client talks to the completions endpoint. APIKey may be empty when the URL
// is a proxy that injects credentials itself.
type Client struct {
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client
	RetryDelay time.Duration
	Timeout    time.Duration // bounds a whole Complete call, retries included
	logger     *slog.Logger
}

// New creates a client with defaults for empty arguments
func New(endpoint, model, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		URL:        endpoint,
		Model:      model,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		RetryDelay: 2 * time.Second,
		Timeout:    timeout,
		logger:     slog.Default().With("component", "openrouter"),
	}
}

// Name identifies the provider in logs, metrics and results
func (c *Client) Name() string {
	return "openrouter:" + c.Model
}

// DetectAIContent asks the model whether the text was written by an AI
func (c *Client) DetectAIContent(ctx context.Context, text string) (*models.ExternalAnalysis, error) {
	content, err := c.Complete(ctx, []Message{
		{Role: "system", Content: prompts.System},
		{Role: "user", Content: prompts.User(text)},
	})
	if err != nil {
		return nil, err
	}

	result, err := models.ParseExternalAnalysis(content)
	if err != nil {
		return nil, err
	}
	result.Source = c.Name()
	return result, nil
}

// Complete sends messages and returns the first choice's content. Rate
// limited (429) and 5xx responses are retried until Timeout runs out.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(Request{
		Model:       c.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying request", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.RetryDelay * time.Duration(attempt-1)):
			}
		}

		content, err := c.do(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !retryable(statusErr.StatusCode) {
			return "", err
		}
	}
	return "", fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "AI Detector")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("response received", "status", resp.StatusCode, "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return parsed.Choices[0].Message.Content, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
