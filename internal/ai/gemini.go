package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

var geminiDefaults = backoff{attempts: 3, base: 500 * time.Millisecond, max: 4 * time.Second}

// GeminiClient talks to the Gemini API through the genai SDK. The SDK client
// is created on first use so that building a runtime never dials out.
type GeminiClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	retry   backoff

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient returns a client with the given per-attempt timeout and
// retry policy. Non-positive values fall back to the defaults.
func NewGeminiClient(apiKey string, timeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiClient{
		apiKey:  apiKey,
		timeout: timeout,
		retry:   newBackoff(retryMax, baseDelay, maxDelay, geminiDefaults),
	}
}

// NewGeminiClientWithBaseURL points the SDK at a custom endpoint (used in tests).
func NewGeminiClientWithBaseURL(apiKey string, timeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *GeminiClient {
	c := NewGeminiClient(apiKey, timeout, retryMax, baseDelay, maxDelay)
	c.baseURL = baseURL
	return c
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if c.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
		}
		c.client, c.initErr = genai.NewClient(ctx, cfg)
		if c.initErr != nil {
			c.initErr = fmt.Errorf("create gemini client: %w", c.initErr)
		}
	})
	return c.client, c.initErr
}

// Generate sends the conversation to Gemini. System messages become the
// system instruction; assistant turns are sent with the model role.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if req.Model == "" {
		return nil, errModelEmpty
	}
	contents, system := geminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, errMessagesEmpty
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var out *GenerateResponse
	err = c.retry.run(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		resp, err := client.Models.GenerateContent(callCtx, req.Model, contents, cfg)
		if err != nil {
			return classifyGeminiError(err)
		}
		out = geminiResponse(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func geminiContents(msgs []Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant, "model":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func geminiResponse(resp *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: resp.Text()}}},
	}
	out.ID = resp.ResponseID
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}

// classifyGeminiError maps SDK errors onto the shared error taxonomy.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		if isRetryableNetErr(err) {
			return &UnreachableError{Host: "generativelanguage.googleapis.com", Err: err}
		}
		return fmt.Errorf("gemini request: %w", err)
	}
	e := &APIError{Provider: ProviderGemini, StatusCode: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message}
	// the API reports unknown models as NOT_FOUND without naming the model
	if apiErr.Code == http.StatusNotFound {
		return &ModelNotFoundError{APIError: e}
	}
	return classifyAPIError(e, 0)
}
