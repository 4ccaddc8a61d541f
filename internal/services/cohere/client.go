// Package cohere adapts the Cohere chat API as an alternative
// language-generation provider.
package cohere

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/core"
	"github.com/cohere-ai/cohere-go/v2/option"

	"letterpod/internal/services"
)

const (
	defaultModel       = "command-r-plus"
	defaultTemperature = 0.7
	defaultTimeout     = 180 * time.Second
	preamble           = "You write spoken-word podcast scripts from newsletter content. Reply with the script text only."
)

type chatAPI interface {
	Chat(ctx context.Context, request *cohere.ChatRequest, opts ...option.RequestOption) (*cohere.NonStreamedChatResponse, error)
}

// Config holds the Cohere connection settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// Client generates scripts through Cohere.
type Client struct {
	api         chatAPI
	model       string
	temperature float64
}

// New builds a client backed by the Cohere SDK.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "cohere", "new", "api key required", nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		cohereclient.WithToken(cfg.APIKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, cohereclient.WithBaseURL(base))
	}
	return newWithAPI(cohereclient.NewClient(opts...), cfg), nil
}

func newWithAPI(api chatAPI, cfg Config) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Client{api: api, model: model, temperature: temperature}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "cohere", "generate", "prompt required", nil)
	}
	model := c.model
	temperature := c.temperature
	pre := preamble
	req := &cohere.ChatRequest{
		Message:     prompt,
		Model:       &model,
		Preamble:    &pre,
		Temperature: &temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	resp, err := c.api.Chat(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", services.Wrap(services.ErrMalformed, "cohere", "generate", "empty response text", nil)
	}
	return strings.TrimSpace(resp.Text), nil
}

// HealthCheck issues a minimal chat request.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Generate(ctx, "Reply with the single word OK.", 5)
	return err
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "cohere", "generate", "request timed out", err)
	}
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "cohere", "generate", "provider unavailable", err)
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "cohere", "generate", "credentials rejected", err)
		default:
			return services.Wrap(services.ErrFatal, "cohere", "generate", "request rejected", err)
		}
	}
	return services.Wrap(services.ErrTransient, "cohere", "generate", "request failed", err)
}
