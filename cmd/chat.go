package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edusight-cli/internal/ai"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/prompt"
	"github.com/KaramelBytes/edusight-cli/internal/session"
)

var (
	chatLoad       loadFlags
	chatPersona    string
	chatModel      string
	chatProvider   string
	chatMaxTokens  int
	chatTemp       float64
	chatChartDir   string
	chatOllamaHost string
	chatTimeoutSec int
	chatSampleRows int
)

var chatCmd = &cobra.Command{
	Use:   "chat <files...>",
	Short: "Start an interactive question session over the loaded datasets",
	Long: `Starts a line-oriented session. Every line is a question; lines starting
with ':' are commands:

  :persona <management|teachers|trainers>  switch the audience
  :filters                                 show the filters of the last answer
  :suggest                                 show suggested questions
  :clear                                   discard datasets and history
  :load <files...>                         load more datasets
  :quit                                    leave`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		persona := resolvePersona(cmd.ErrOrStderr(), chatPersona)
		sets, err := loadDatasets(cmd, args, &chatLoad)
		if err != nil {
			return err
		}
		model := selectModel(cfg, chatModel)
		maxTokens := chatMaxTokens
		if maxTokens == 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}
		temp := chatTemp
		if temp == 0 && cfg != nil {
			temp = cfg.Temperature
		}
		runtime, providerName, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: chatProvider, OllamaHost: chatOllamaHost})
		if err != nil {
			return err
		}
		s := session.New(
			session.WithLogger(logger),
			session.WithPersona(persona),
			session.WithExtractor(newExtractor()),
			session.WithContextOptions(contextOptions(chatSampleRows)),
			session.WithGenerator(hintingGenerator{
				gen:      ai.TextGenerator{Runtime: runtime, Model: model, MaxTokens: maxTokens, Temperature: temp},
				provider: providerName,
			}),
		)
		for _, ds := range sets {
			s.Add(ds)
		}
		return runChat(cmd, s)
	},
}

func runChat(cmd *cobra.Command, s *session.Session) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "EduSight (%s) · %d dataset(s) loaded. Type :quit to leave.\n", s.Persona().Name(), len(s.Datasets()))
	printSuggestions(w, s)

	timeout := time.Duration(chatTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	charts := 0
	in := bufio.NewScanner(cmd.InOrStdin())
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(w, "\n> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := chatCommand(cmd, s, line); quit {
				return nil
			}
			continue
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		reply := s.Ask(ctx, line)
		cancel()
		fmt.Fprintln(w, reply.Text)
		if reply.Chart != nil {
			charts++
			path := ""
			if chatChartDir != "" {
				path = filepath.Join(chatChartDir, fmt.Sprintf("chart_%02d.json", charts))
			}
			if err := writeChart(w, reply.Chart, path, false); err != nil {
				fmt.Fprintf(w, "⚠ %v\n", err)
			}
		}
	}
	return in.Err()
}

// chatCommand handles a ':' line and reports whether the session should end.
func chatCommand(cmd *cobra.Command, s *session.Session, line string) bool {
	w := cmd.OutOrStdout()
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":clear":
		s.Clear()
		fmt.Fprintln(w, "✓ Session cleared (datasets, history and filters)")
	case ":persona":
		if len(fields) < 2 {
			fmt.Fprintf(w, "Current persona: %s (%s)\n", s.Persona().Key(), s.Persona().Name())
			return false
		}
		p, ok := prompt.ParsePersona(strings.Join(fields[1:], " "))
		if !ok {
			fmt.Fprintf(w, "⚠ Unknown persona %q (use management|teachers|trainers)\n", strings.Join(fields[1:], " "))
			return false
		}
		s.SetPersona(p)
		fmt.Fprintf(w, "✓ Persona: %s\n", p.Name())
		printSuggestions(w, s)
	case ":filters":
		fmt.Fprintf(w, "Filtros aplicados: %s\n", filter.Describe(s.LastFilters()))
	case ":suggest":
		printSuggestions(w, s)
	case ":load":
		if len(fields) < 2 {
			fmt.Fprintln(w, "usage: :load <files...>")
			return false
		}
		sets, err := loadDatasets(cmd, fields[1:], &chatLoad)
		if err != nil {
			fmt.Fprintf(w, "⚠ %v\n", err)
			return false
		}
		for _, ds := range sets {
			if s.Add(ds) {
				fmt.Fprintf(w, "✓ Loaded %s (%d rows)\n", ds.Name, ds.Table.Len())
			} else {
				fmt.Fprintf(w, "⚠ %s is already loaded\n", ds.Name)
			}
		}
	default:
		fmt.Fprintf(w, "⚠ Unknown command %s\n", fields[0])
	}
	return false
}

func printSuggestions(w io.Writer, s *session.Session) {
	fmt.Fprintln(w, "💡 Sugestões:")
	for _, q := range s.Suggestions() {
		fmt.Fprintf(w, "  • %s\n", q)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatLoad.register(chatCmd)
	chatCmd.Flags().StringVar(&chatPersona, "persona", "", "audience: management|teachers|trainers (default from config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "override model (default from config)")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "provider: gemini|openrouter|ollama (default from config)")
	chatCmd.Flags().IntVar(&chatMaxTokens, "max-tokens", 0, "max tokens for each response")
	chatCmd.Flags().Float64Var(&chatTemp, "temp", 0, "sampling temperature")
	chatCmd.Flags().StringVar(&chatChartDir, "chart-dir", "", "directory where selected charts are written as Plotly JSON")
	chatCmd.Flags().StringVar(&chatOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	chatCmd.Flags().IntVar(&chatTimeoutSec, "timeout-sec", 180, "per-question timeout in seconds")
	chatCmd.Flags().IntVar(&chatSampleRows, "sample-rows", 0, "number of sample rows in the data context (default from config, 3)")
}
