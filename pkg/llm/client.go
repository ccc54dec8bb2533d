// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jwalitptl/medischedule-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

var (
	ErrNotConfigured = errors.New("ai provider not configured")
	ErrRateLimited   = errors.New("ai provider rate limited")
	ErrUnavailable   = errors.New("ai provider unavailable")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is the context handed to the model for one call.
type Prompt struct {
	Operation string
	System    string
	Messages  []Message
	// JSON asks the provider for a JSON object answer.
	JSON bool
}

// Advisor produces a text answer for a prompt.
type Advisor interface {
	Advise(ctx context.Context, prompt Prompt) (string, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

type Client struct {
	cfg     Config
	api     *openai.Client
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewAdvisor returns a Client, or an advisor that always fails with
// ErrNotConfigured when no API key is set.
func NewAdvisor(cfg Config, m *metrics.Metrics) Advisor {
	if cfg.APIKey == "" {
		return unconfigured{}
	}
	return NewClient(cfg, m)
}

func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		cfg: cfg,
		api: openai.NewClientWithConfig(apiCfg),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		metrics: m,
	}
}

func (c *Client) Advise(ctx context.Context, prompt Prompt) (string, error) {
	op := prompt.Operation
	if op == "" {
		op = "advise"
	}
	start := time.Now()

	var answer string
	err := c.cb.Execute(func() error {
		var err error
		answer, err = c.complete(ctx, prompt)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.metrics.AIRequests.WithLabelValues(op, metrics.Status(err)).Inc()
	c.metrics.AILatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return answer, err
}

func (c *Client) complete(ctx context.Context, prompt Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(prompt.Messages)+1)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	for _, m := range prompt.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: float32(c.cfg.Temperature),
	}
	if prompt.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if statusCode(err) == http.StatusTooManyRequests {
			return "", ErrRateLimited
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// statusCode reports the HTTP status of a provider error, or 0 for
// transport failures.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

type unconfigured struct{}

func (unconfigured) Advise(context.Context, Prompt) (string, error) {
	return "", ErrNotConfigured
}

// ExtractJSON decodes the first JSON object found in text into v. Models
// sometimes wrap JSON answers in prose or code fences.
func ExtractJSON(text string, v interface{}) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return errors.New("no json object in answer")
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

// AsAppError maps an Advise failure to the error reported to API callers.
func AsAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return apperrors.Upstream("AI service not configured", err)
	case errors.Is(err, ErrRateLimited):
		return apperrors.Upstream("AI service is busy, try again later", err)
	default:
		return apperrors.Upstream("AI service unavailable", err)
	}
}
