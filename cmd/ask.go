package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edusight-cli/internal/ai"
	"github.com/KaramelBytes/edusight-cli/internal/chart"
	"github.com/KaramelBytes/edusight-cli/internal/dataset"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/prompt"
	"github.com/KaramelBytes/edusight-cli/internal/session"
	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

var (
	askLoad        loadFlags
	askQuestion    string
	askPersona     string
	askModel       string
	askProvider    string
	askMaxTokens   int
	askTemp        float64
	askDryRun      bool
	askQuiet       bool
	askJSON        bool
	askStream      bool
	askPromptLimit int
	askBudgetLimit float64
	askOutputPath  string
	askOutputFmt   string
	askChartPath   string
	askOllamaHost  string
	askTimeoutSec  int
	askSampleRows  int
)

var askCmd = &cobra.Command{
	Use:   "ask <files...>",
	Short: "Ask one question about the loaded datasets",
	Example: `  edusight ask saresp.csv -q "Analise a escola código 100"
  edusight ask saresp.csv -q "Plano de aula para a turma 6A" --persona teachers
  edusight ask saresp.csv -q "Compare as turmas" --dry-run
  edusight ask saresp.csv -q "mostre a distribuição" --chart-output fig.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if askQuestion == "" {
			return fmt.Errorf("--question is required")
		}
		if askJSON {
			askQuiet = true
		}
		persona := resolvePersona(cmd.ErrOrStderr(), askPersona)
		sets, err := loadDatasets(cmd, args, &askLoad)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		streamed := false

		model := selectModel(cfg, askModel)
		maxTokens := askMaxTokens
		if maxTokens == 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}
		temp := askTemp
		if temp == 0 && cfg != nil {
			temp = cfg.Temperature
		}

		opts := []session.Option{
			session.WithLogger(logger),
			session.WithPersona(persona),
			session.WithExtractor(newExtractor()),
			session.WithContextOptions(contextOptions(askSampleRows)),
			session.WithPromptLimit(askPromptLimit),
		}
		if !askDryRun {
			runtime, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: askProvider, OllamaHost: askOllamaHost})
			if err != nil {
				return err
			}
			gen := ai.TextGenerator{Runtime: runtime, Model: model, MaxTokens: maxTokens, Temperature: temp}
			if askStream && !askJSON {
				gen.OnDelta = func(d string) {
					streamed = true
					fmt.Fprint(w, d)
				}
			}
			opts = append(opts, session.WithGenerator(hintingGenerator{gen: gen, provider: providerName}))
		}
		s := session.New(opts...)
		for _, ds := range sets {
			s.Add(ds)
		}

		plan := s.Preview(askQuestion)
		tokens := utils.CountTokens(plan.Prompt)
		if !askQuiet {
			printBreakdown(w, plan, persona, tokens)
		}

		var estCost float64
		if mi, ok := ai.LookupModel(model); ok {
			if ai.ExceedsContext(model, tokens, maxTokens) && !askQuiet {
				fmt.Fprintf(w, "⚠ Prompt (%d tokens) + max-tokens (%d) exceeds %s context window (~%d tokens).\n",
					tokens, maxTokens, mi.Name, mi.ContextTokens)
			}
			if cost, ok := ai.EstimateCostUSD(model, tokens, maxTokens); ok {
				estCost = cost
				if !askQuiet {
					fmt.Fprintf(w, "Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
				}
			}
		}
		if err := enforceBudget(estCost, askBudgetLimit); err != nil {
			return err
		}

		if askDryRun {
			if !askQuiet {
				fmt.Fprintln(w, "\n--dry-run: no API call will be made. Prompt preview below --")
				fmt.Fprintf(w, "Request ID (dry-run): dry_%s\n", uuid.NewString())
			}
			fmt.Fprintln(w, plan.Prompt)
			return nil
		}

		timeoutSec := askTimeoutSec
		if timeoutSec <= 0 {
			timeoutSec = 180
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
		defer cancel()

		if !askQuiet {
			fmt.Fprintf(w, "⚙ Generating with model=%s (prompt tokens≈%d) ...\n", model, tokens)
		}
		reply := s.Ask(ctx, askQuestion)

		if streamed {
			fmt.Fprintln(w)
		}
		// a streamed reply was already printed as it arrived, unless the
		// stream broke and the reply is the failure message
		echoed := streamed && reply.Err == nil
		if !echoed || askOutputPath != "" {
			if err := formatAndWriteOutput(reply.Text, outputOptions{
				JSON:         askJSON,
				Quiet:        askQuiet,
				Datasets:     datasetNames(sets),
				Persona:      persona.Key(),
				Filters:      reply.Filters,
				Model:        model,
				MaxTokens:    maxTokens,
				Temperature:  temp,
				PromptTokens: tokens,
				OutputPath:   askOutputPath,
				OutputFormat: askOutputFmt,
				Writer:       replyWriter(w, echoed),
			}); err != nil {
				return err
			}
		}
		return writeChart(w, reply.Chart, askChartPath, askQuiet)
	},
}

func printBreakdown(w io.Writer, plan session.Plan, persona prompt.Persona, total int) {
	if plan.Filtered {
		fmt.Fprintf(w, "🎯 Filters (%s): %s\n", plan.Dataset, filter.Describe(plan.Filters))
	} else if !plan.Criteria.Empty() {
		fmt.Fprintf(w, "⚠ No dataset matched %s; using all data\n", plan.Criteria)
	}
	parts := utils.TokenBreakdown(map[string]string{
		"instructions": persona.Instructions(),
		"context":      plan.Context,
	})
	overhead := total - parts["instructions"] - parts["context"]
	if overhead < 0 {
		overhead = 0
	}
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "Tokens: total≈%d (", total)
	for _, k := range keys {
		fmt.Fprintf(w, "%s≈%d, ", k, parts[k])
	}
	fmt.Fprintf(w, "overhead≈%d)\n", overhead)
}

func writeChart(w io.Writer, spec *chart.Spec, path string, quiet bool) error {
	if spec == nil {
		return nil
	}
	if path == "" {
		if !quiet {
			fmt.Fprintf(w, "📊 Chart available: %s (%s). Use --chart-output to save it.\n", spec.Title, spec.Kind)
		}
		return nil
	}
	fig, err := spec.Figure()
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, fig); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	if !quiet {
		fmt.Fprintf(w, "📊 Saved %s chart to %s\n", spec.Kind, path)
	}
	return nil
}

func datasetNames(sets []*dataset.Loaded) []string {
	out := make([]string, len(sets))
	for i, ds := range sets {
		out[i] = ds.Name
	}
	return out
}

// replyWriter discards the reply body when it was already streamed.
func replyWriter(w io.Writer, streamed bool) io.Writer {
	if streamed {
		return io.Discard
	}
	return w
}

func init() {
	rootCmd.AddCommand(askCmd)
	askLoad.register(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.Flags().StringVar(&askPersona, "persona", "", "audience: management|teachers|trainers (default from config)")
	askCmd.Flags().StringVar(&askModel, "model", "", "override model (default from config)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "provider: gemini|openrouter|ollama (default from config)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "max tokens for response")
	askCmd.Flags().Float64Var(&askTemp, "temp", 0, "sampling temperature")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "build prompt and print token breakdown without calling the API")
	askCmd.Flags().IntVar(&askPromptLimit, "prompt-limit", 0, "trim the data context so the prompt stays under this many tokens")
	askCmd.Flags().Float64Var(&askBudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	askCmd.Flags().StringVar(&askOutputPath, "output", "", "optional path to write the response (skips in --dry-run)")
	askCmd.Flags().StringVar(&askOutputFmt, "format", "text", "output format: text|markdown|json")
	askCmd.Flags().StringVar(&askChartPath, "chart-output", "", "write the selected chart as Plotly JSON to this path")
	askCmd.Flags().BoolVar(&askQuiet, "quiet", false, "suppress non-essential output")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "emit response as JSON to stdout")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream responses if supported by the provider")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	askCmd.Flags().IntVar(&askTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	askCmd.Flags().IntVar(&askSampleRows, "sample-rows", 0, "number of sample rows in the data context (default from config, 3)")
}
