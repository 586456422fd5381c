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

var ollamaDefaults = retryPolicy{maxAttempts: 2, baseDelay: 200 * time.Millisecond, maxDelay: time.Second}

// DefaultOllamaHost is used when no host is configured.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retry      retryPolicy
}

// NewOllamaClient creates a client targeting host (e.g. http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	if host == "" {
		host = DefaultOllamaHost
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		host:       host,
		retry:      newRetryPolicy(retryMax, baseDelay, maxDelay, ollamaDefaults),
	}
}

// Structures aligned with Ollama /api/chat (non-streaming)
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}
type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// Generate sends a chat request to Ollama and maps the reply to GenerateResponse.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	oreq := ollamaChatRequest{
		Model:    req.Model,
		Messages: make([]ollamaChatMessage, len(req.Messages)),
		Options:  map[string]any{},
	}
	for i, msg := range req.Messages {
		oreq.Messages[i] = ollamaChatMessage(msg)
	}
	if req.JSON {
		oreq.Format = "json"
	}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.host + "/api/chat"

	var out *GenerateResponse
	err = c.retry.do(ctx, func(int) attemptResult {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return attemptResult{err: fmt.Errorf("build request: %w", err)}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return attemptResult{err: &UnreachableError{Host: c.host, Err: err}, retryable: isRetryableNetErr(err)}
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return attemptResult{
				err:       classifyAPIError(decodeAPIError(resp), resp),
				retryable: resp.StatusCode >= 500,
			}
		}
		var oresp ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
			return attemptResult{err: fmt.Errorf("decode response: %w", err), retryable: true}
		}
		out = &GenerateResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
			Usage: Usage{
				PromptTokens:     oresp.PromptEvalCount,
				CompletionTokens: oresp.EvalCount,
				TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
			},
			// Ollama has no request ids; synthesize one for log correlation.
			RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
		}
		return attemptResult{}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
