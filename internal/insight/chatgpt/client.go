// Package chatgpt is a minimal client for the OpenAI chat-completions API.
package chatgpt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airexposure/airexposure/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "chatgpt"

	// DefaultBaseURL is the OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

var (
	// ErrMissingAPIKey is returned by NewClient without an API key.
	ErrMissingAPIKey = errors.New("chatgpt api key cannot be empty")

	// ErrNoChoices is returned when a completion has no choices.
	ErrNoChoices = errors.New("chat completion returned no choices")
)

// Message mirrors the OpenAI chat message structure.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the payload sent to the API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse captures the response for non streaming calls.
type ChatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Config holds configuration for the client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client
}

// Client performs chat completions.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *resilience.Client
}

// NewClient constructs a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SupplierClientConfig(ProviderName, 30*time.Second, nil))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
	}, nil
}

// CreateChatCompletion triggers a sync call.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var out ChatCompletionResponse
	if err := c.httpClient.PostJSON(ctx, c.baseURL+"/chat/completions", headers, req, &out); err != nil {
		return out, fmt.Errorf("chat completion: %w", err)
	}
	return out, nil
}

// Complete sends a system and a user message and returns the first reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.CreateChatCompletion(ctx, ChatCompletionRequest{
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
