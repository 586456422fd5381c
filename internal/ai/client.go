package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var openRouterDefaults = retryPolicy{maxAttempts: 3, baseDelay: 500 * time.Millisecond, maxDelay: 4 * time.Second}

// Client talks to the OpenRouter chat completions API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      retryPolicy
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	// JSON asks the runtime to constrain output to a JSON object.
	JSON bool `json:"-"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Content returns the first choice's text, or "" when there is none.
func (r *GenerateResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *Client {
	return NewClient(apiKey, 0, 0, 0, 0)
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
// Non-positive values fall back to defaults.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
		retry:      newRetryPolicy(retryMax, baseDelay, maxDelay, openRouterDefaults),
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	c := NewClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	body := struct {
		GenerateRequest
		ResponseFormat *responseFormat `json:"response_format,omitempty"`
	}{GenerateRequest: req}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	var out *GenerateResponse
	err = c.retry.do(ctx, func(int) attemptResult {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return attemptResult{err: fmt.Errorf("build request: %w", err)}
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/correlate-cli")
		httpReq.Header.Set("X-Title", "Correlate CLI")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return attemptResult{err: fmt.Errorf("http request: %w", err), retryable: isRetryableNetErr(err)}
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp)
			return attemptResult{
				err:        classifyAPIError(apiErr, resp),
				retryable:  retryableStatus(resp.StatusCode),
				retryAfter: retryAfter(resp),
			}
		}
		var decoded GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return attemptResult{err: fmt.Errorf("decode response: %w", err)}
		}
		decoded.RequestID = extractRequestID(resp)
		out = &decoded
		return attemptResult{}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
