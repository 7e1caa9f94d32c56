package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestGeminiGenerateSuccess(t *testing.T) {
	var gotBody map[string]any
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-pro:generateContent") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": "Olá, gestor"}}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 3, "totalTokenCount": 13},
		})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, GenerateRequest{Model: "gemini-2.5-pro", Messages: []Message{{Role: "user", Content: "oi"}}, MaxTokens: 64})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content != "Olá, gestor" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Fatalf("expected usage to be mapped, got %+v", resp.Usage)
	}
	if _, ok := gotBody["contents"]; !ok {
		t.Fatalf("expected contents in request body, got %v", gotBody)
	}
}

func TestGeminiModelNotFound(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
			"code": 404, "message": "models/nope is not found", "status": "NOT_FOUND",
		}})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("test", 2*time.Second, 1, 0, 0, srv.URL)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope", Messages: []Message{{Role: "user", Content: "oi"}}})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) {
		t.Fatalf("expected ModelNotFoundError, got %T: %v", err, err)
	}
}

func TestGeminiRequiresKeyAndMessages(t *testing.T) {
	c := NewGeminiClient("", time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}}); err == nil {
		t.Fatalf("expected missing key error")
	}
	c = NewGeminiClient("k", time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), GenerateRequest{Model: "m"}); err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty', got %v", err)
	}
}

func TestGeminiContentsSplitsSystem(t *testing.T) {
	contents, system := geminiContents([]Message{
		{Role: "system", Content: "regras"},
		{Role: "user", Content: "pergunta"},
		{Role: "assistant", Content: "resposta"},
	})
	if system != "regras" {
		t.Fatalf("unexpected system instruction %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != genai.RoleUser || contents[1].Role != genai.RoleModel {
		t.Fatalf("unexpected roles: %s, %s", contents[0].Role, contents[1].Role)
	}
}

func TestClassifyGeminiQuota(t *testing.T) {
	err := classifyGeminiError(genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "You exceeded your current quota"})
	var q *QuotaExceededError
	if !errors.As(err, &q) {
		t.Fatalf("expected QuotaExceededError, got %T", err)
	}
	err = classifyGeminiError(genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "slow down"})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	err = classifyGeminiError(genai.APIError{Code: 401, Message: "API key not valid"})
	var auth *AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("expected AuthError, got %T", err)
	}
}
