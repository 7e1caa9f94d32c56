package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/edusight-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/edusight-cli/internal/config"
	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// normalizeProvider maps aliases onto a registered runtime name.
func normalizeProvider(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ai.ProviderGemini, ai.ProviderGoogle:
		return ai.ProviderGemini
	case ai.ProviderLocal, ai.ProviderOllama:
		return ai.ProviderOllama
	case ai.ProviderOpenRouter, ai.ProviderOpenAI, ai.ProviderAnthropic, ai.ProviderMeta, ai.ProviderLlama:
		return ai.ProviderOpenRouter
	}
	return strings.ToLower(strings.TrimSpace(name))
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 120 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	provider := opts.ProviderFlag
	if strings.TrimSpace(provider) == "" && cfg != nil {
		provider = cfg.DefaultProvider
	}
	providerName := normalizeProvider(provider)

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	switch providerName {
	case ai.ProviderGemini:
		if cfg != nil {
			rc.GeminiAPIKey = cfg.GeminiAPIKey
		}
		if rc.GeminiAPIKey == "" {
			rc.GeminiAPIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		}
	case ai.ProviderOpenRouter:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
	case ai.ProviderOllama:
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" {
			host = os.Getenv("EDUSIGHT_OLLAMA_HOST")
		}
		if host == "" && cfg != nil && cfg.OllamaHost != "" {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
		if v := os.Getenv("EDUSIGHT_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s", providerName)
	}
	return client, providerName, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultModel
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// hintingGenerator decorates generation errors with a hint for the user.
type hintingGenerator struct {
	gen      ai.TextGenerator
	provider string
}

func (h hintingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := h.gen.Generate(ctx, prompt)
	if err != nil {
		return "", explainGenerationError(err, h.provider, h.gen.Model)
	}
	return out, nil
}

// explainGenerationError provides user-friendly hints for common error classes.
func explainGenerationError(err error, providerName, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and host is correct. You can set EDUSIGHT_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		if providerName == ai.ProviderGemini {
			return fmt.Errorf("authentication failed: set GEMINI_API_KEY or add gemini_api_key in config (~/.edusight/config.yaml): %w", err)
		}
		return fmt.Errorf("authentication failed: set OPENROUTER_API_KEY or add api_key in config (~/.edusight/config.yaml): %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name: %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try fewer datasets, a narrower question or smaller max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	}
	return err
}

type outputOptions struct {
	JSON         bool
	Quiet        bool
	Datasets     []string
	Persona      string
	Filters      []string
	Model        string
	MaxTokens    int
	Temperature  float64
	PromptTokens int
	OutputPath   string
	OutputFormat string
	Writer       io.Writer
}

func (o outputOptions) record(content string) map[string]any {
	return map[string]any{
		"datasets":      o.Datasets,
		"persona":       o.Persona,
		"filters":       o.Filters,
		"model":         o.Model,
		"max_tokens":    o.MaxTokens,
		"temperature":   o.Temperature,
		"prompt_tokens": o.PromptTokens,
		"content":       content,
	}
}

func formatAndWriteOutput(content string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	if opts.JSON {
		b, err := utils.PrettyJSON(opts.record(content))
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(b))
	} else {
		if opts.Quiet {
			fmt.Fprintln(w, content)
		} else {
			fmt.Fprintln(w, "\n=== Resposta ===")
			fmt.Fprintln(w, content)
		}
	}

	if opts.OutputPath == "" {
		return nil
	}

	switch opts.OutputFormat {
	case "", "text", "markdown", "md":
		if err := utils.SafeWriteFile(opts.OutputPath, []byte(content)); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	case "json":
		b, err := utils.PrettyJSON(opts.record(content))
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		if err := utils.SafeWriteFile(opts.OutputPath, b); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	default:
		return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", opts.OutputFormat)
	}

	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}
