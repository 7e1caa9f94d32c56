package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
)

// newOllamaStub serves /api/chat on a tcp4 loopback listener.
func newOllamaStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_AskStreamFailureShowsErrorReply(t *testing.T) {
	srv := newOllamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Parcial "},"done":false}`)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		fmt.Fprintln(w, `{not json`)
	})
	path := writeSample(t)

	out := runCmd(t, "ask", path, "-q", "Como está a escola?",
		"--provider", "ollama", "--ollama-host", srv.URL, "--model", "llama3.1:8b",
		"--stream", "--timeout-sec", "10")
	if !strings.Contains(out, "Parcial ") {
		t.Fatalf("expected streamed delta, got:\n%s", out)
	}
	if !strings.Contains(out, "❌ Erro ao processar:") {
		t.Fatalf("expected failure reply after a broken stream, got:\n%s", out)
	}
	if !strings.Contains(out, "decode stream") {
		t.Fatalf("expected decode detail in the reply, got:\n%s", out)
	}
}

func TestCLI_AskStreamSuccessPrintsOnce(t *testing.T) {
	srv := newOllamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Resposta "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"completa"},"done":true}`)
	})
	path := writeSample(t)

	out := runCmd(t, "ask", path, "-q", "Como está a escola?",
		"--provider", "ollama", "--ollama-host", srv.URL, "--model", "llama3.1:8b", "--stream")
	if got := strings.Count(out, "Resposta completa"); got != 1 {
		t.Fatalf("expected the reply once, got %d in:\n%s", got, out)
	}
	if strings.Contains(out, "Erro ao processar") {
		t.Fatalf("unexpected failure reply:\n%s", out)
	}
}
