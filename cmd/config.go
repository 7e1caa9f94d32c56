package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edusight-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/edusight-cli/internal/config"
	"github.com/KaramelBytes/edusight-cli/internal/prompt"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set EduSight configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(w, "No config loaded")
			return nil
		}
		fmt.Fprintf(w, "default_provider: %s\n", cfg.DefaultProvider)
		fmt.Fprintf(w, "default_model: %s\n", cfg.DefaultModel)
		fmt.Fprintf(w, "default_persona: %s\n", cfg.DefaultPersona)
		fmt.Fprintf(w, "gemini_api_key: %s\n", mask(cfg.GeminiAPIKey))
		fmt.Fprintf(w, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(w, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(w, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(w, "code_min_digits: %d\n", cfg.CodeMinDigits)
		fmt.Fprintf(w, "code_max_digits: %d\n", cfg.CodeMaxDigits)
		fmt.Fprintf(w, "preview_rows: %d\n", cfg.PreviewRows)
		fmt.Fprintf(w, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(w, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		if cfg.DefaultProvider == ai.ProviderOllama {
			fmt.Fprintf(w, "ollama_host: %s\n", cfg.OllamaHost)
			fmt.Fprintf(w, "ollama_timeout_sec: %d\n", cfg.OllamaTimeoutSec)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch p := normalizeProvider(val); p {
		case ai.ProviderGemini, ai.ProviderOpenRouter, ai.ProviderOllama:
			c.DefaultProvider = p
		default:
			return fmt.Errorf("invalid default_provider: %s (use gemini, openrouter or ollama)", val)
		}
	case "default_persona":
		p, ok := prompt.ParsePersona(val)
		if !ok {
			return fmt.Errorf("invalid default_persona: %s (use management, teachers or trainers)", val)
		}
		c.DefaultPersona = p.Key()
	case "max_tokens":
		c.MaxTokens, err = atoi(1)
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for temperature: %w", perr)
		}
		c.Temperature = f
	case "code_min_digits":
		c.CodeMinDigits, err = atoi(1)
	case "code_max_digits":
		c.CodeMaxDigits, err = atoi(1)
	case "preview_rows":
		c.PreviewRows, err = atoi(0)
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi(1)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi(1)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi(0)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi(0)
	case "ollama_host":
		c.OllamaHost = val
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = atoi(1)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return err
	}
	if c.CodeMinDigits > 0 && c.CodeMaxDigits > 0 && c.CodeMinDigits > c.CodeMaxDigits {
		return fmt.Errorf("code_min_digits (%d) exceeds code_max_digits (%d)", c.CodeMinDigits, c.CodeMaxDigits)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
