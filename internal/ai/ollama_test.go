package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var captured ollamaChatRequest
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "olá da máquina local"},
			"done":              true,
			"prompt_eval_count": 12,
			"eval_count":        5,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msgs := []Message{
		{Role: RoleSystem, Content: "Você é um analista"},
		{Role: RoleUser, Content: "Olá"},
		{Role: RoleAssistant, Content: "Oi!"},
		{Role: RoleUser, Content: "Analise a turma A"},
	}
	resp, err := c.Generate(ctx, GenerateRequest{Model: "llama3.1:8b", Messages: msgs, MaxTokens: 16, Temperature: 0.2})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Choices[0].Message.Content != "olá da máquina local" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.RequestID, "ollama_") {
		t.Fatalf("expected minted request id, got %q", resp.RequestID)
	}
	if resp.Usage.TotalTokens != 17 {
		t.Fatalf("expected usage from eval counts, got %+v", resp.Usage)
	}
	if len(captured.Messages) != 4 || captured.Messages[2] != msgs[2] {
		t.Fatalf("messages not forwarded verbatim: %+v", captured.Messages)
	}
	if captured.Stream || captured.Options["num_predict"] != float64(16) {
		t.Fatalf("unexpected request: %+v", captured)
	}
}

func TestOllamaErrors(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "missing" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": `model "missing" not found, try pulling it first`})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "bad request"})
	}))
	defer srv.Close()
	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)

	_, err := c.Generate(context.Background(), GenerateRequest{Model: "missing", Messages: hi})
	var nf *ModelNotFoundError
	if !errors.As(err, &nf) || !strings.Contains(nf.Message, "try pulling") {
		t.Fatalf("expected ModelNotFoundError with message, got %T: %v", err, err)
	}
	_, err = c.Generate(context.Background(), GenerateRequest{Model: "llama3.1:8b", Messages: hi})
	var br *BadRequestError
	if !errors.As(err, &br) {
		t.Fatalf("expected BadRequestError, got %T: %v", err, err)
	}
}

func TestOllamaEmptyMessages(t *testing.T) {
	c := NewOllamaClient("", 2*time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3.1:8b", Messages: []Message{}})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty' error, got: %v", err)
	}
	err = c.GenerateStream(context.Background(), GenerateRequest{Model: "llama3.1:8b"}, func(string) {})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty' error, got: %v", err)
	}
}

func TestOllamaStream(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range []string{"Média ", "da turma: ", "6.5"} {
			fmt.Fprintf(w, "{\"message\":{\"role\":\"assistant\",\"content\":%q},\"done\":false}\n", part)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, 2*time.Second, 1, 0, 0)
	var got strings.Builder
	if err := c.GenerateStream(context.Background(), GenerateRequest{Model: "m", Messages: hi}, func(d string) { got.WriteString(d) }); err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	if got.String() != "Média da turma: 6.5" {
		t.Fatalf("unexpected stream output %q", got.String())
	}
}

func TestOllamaUnreachable(t *testing.T) {
	// nothing listens on port 1
	c := NewOllamaClient("http://127.0.0.1:1", time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: hi})
	var un *UnreachableError
	if !errors.As(err, &un) || un.Host != "http://127.0.0.1:1" {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}
