package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1"

var openRouterDefaults = backoff{attempts: 3, base: 500 * time.Millisecond, max: 4 * time.Second}

// OpenRouterClient calls the OpenAI-compatible chat completions endpoint of
// OpenRouter.
type OpenRouterClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      backoff
}

// NewOpenRouterClient returns a client with the given timeout and retry
// policy. Non-positive values fall back to the defaults.
func NewOpenRouterClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OpenRouterClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &OpenRouterClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    openRouterURL,
		retry:      newBackoff(retryMax, baseDelay, maxDelay, openRouterDefaults),
	}
}

// NewOpenRouterClientWithBaseURL points the client at another endpoint (used in tests).
func NewOpenRouterClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *OpenRouterClient {
	c := NewOpenRouterClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

type openRouterRequest struct {
	GenerateRequest
	Stream bool `json:"stream,omitempty"`
}

func (c *OpenRouterClient) post(ctx context.Context, req GenerateRequest, stream bool) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is missing")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(openRouterRequest{GenerateRequest: req, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/edusight-cli")
	httpReq.Header.Set("X-Title", "EduSight CLI")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, classifyAPIError(readAPIError(ProviderOpenRouter, resp), retryAfter(resp))
	}
	return resp, nil
}

// Generate sends one chat completion, retrying 429, 5xx and network timeouts.
func (c *OpenRouterClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var out *GenerateResponse
	err := c.retry.run(ctx, func(ctx context.Context) error {
		resp, err := c.post(ctx, req, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		var r GenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		r.RequestID = requestID(resp)
		out = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateStream reads the SSE stream and hands every content delta to onDelta.
// Streams are not retried.
func (c *OpenRouterClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}
		chunk.Choices = nil
		if err := json.Unmarshal([]byte(data), &chunk); err == nil && len(chunk.Choices) > 0 {
			onDelta(chunk.Choices[0].Delta.Content)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}
