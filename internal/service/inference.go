package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/kinflick/internal/config"
)

// InferenceRequest is one single-image captioning call.
type InferenceRequest struct {
	Model       string
	MaxTokens   int
	Prompt      string
	MediaType   string // image/png or image/jpeg
	ImageBase64 string
}

// InferenceClient sends a prompt plus one image to a vision-language model
// and returns the first text block of the answer.
type InferenceClient interface {
	Complete(ctx context.Context, req *InferenceRequest) (string, error)
}

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	client   *resty.Client
	endpoint string
}

// NewAnthropicClient creates a messages API client.
// Parameters:
//   - cfg: inference configuration including base URL, API key, version and timeout.
//
// Returns:
//   - *AnthropicClient: client with auth headers and per-call timeout applied.
func NewAnthropicClient(cfg *config.InferenceConfig) *AnthropicClient {
	client := resty.New()
	client.SetHeader("x-api-key", cfg.APIKey)
	client.SetHeader("anthropic-version", cfg.APIVersion)
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicClient{
		client:   client,
		endpoint: baseURL + "/v1/messages",
	}
}

// Messages API request/response structures
type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one user message holding the prompt and the image.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: model, token limit, prompt and base64 image.
//
// Returns:
//   - string: text of the first content block.
//   - error: wraps ErrInferenceTransport on network or HTTP failures,
//     ErrMalformedResponse when a 2xx body lacks content[0].text.
func (c *AnthropicClient) Complete(ctx context.Context, req *InferenceRequest) (string, error) {
	body := messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []message{
			{
				Role: "user",
				Content: []contentBlock{
					{Type: "text", Text: req.Prompt},
					{
						Type: "image",
						Source: &imageSource{
							Type:      "base64",
							MediaType: req.MediaType,
							Data:      req.ImageBase64,
						},
					},
				},
			},
		},
	}

	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInferenceTransport, err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		var resp messagesResponse
		if json.Unmarshal(httpResp.Body(), &resp) == nil && resp.Error != nil {
			return "", fmt.Errorf("%w: HTTP %d: %s", ErrInferenceTransport, httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrInferenceTransport, httpResp.StatusCode(), truncate(string(httpResp.Body()), 512))
	}

	var resp messagesResponse
	if err := json.Unmarshal(httpResp.Body(), &resp); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return "", fmt.Errorf("%w: no text content (body: %s)", ErrMalformedResponse, truncate(string(httpResp.Body()), 512))
	}

	return *resp.Content[0].Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
