package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edusight-cli/internal/analysis"
	"github.com/KaramelBytes/edusight-cli/internal/dataset"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/prompt"
	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

var (
	anaLoad       loadFlags
	anaAsk        string
	anaSampleRows int
	anaJSON       bool
	anaOutputPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Summarize assessment datasets, optionally narrowed by a question",
	Example: `  edusight analyze saresp_2024.csv
  edusight analyze data/*.xlsx --ask "turma 6A do sexo feminino"
  edusight analyze saresp.csv --json --output resumo.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, err := loadDatasets(cmd, args, &anaLoad)
		if err != nil {
			return err
		}
		opt := contextOptions(anaSampleRows)

		var (
			out     []byte
			matched filter.Match
			ok      bool
		)
		if anaAsk != "" {
			c := newExtractor().Extract(anaAsk)
			logger.Debug("criteria extracted", zap.Stringer("criteria", c))
			matched, ok = filter.ApplyFirst(sets, c)
			if !ok && !c.Empty() {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ No dataset matched %s; showing all data\n", c)
			}
		}

		if anaJSON {
			var v any
			if ok {
				v = analysis.Analyze(matched.Table, matched.Name, matched.Applied)
			} else {
				v = summaries(sets)
			}
			out, err = utils.PrettyJSON(v)
			if err != nil {
				return err
			}
		} else if ok {
			out = []byte(prompt.BuildFiltered(matched.Table, matched.Name, matched.Applied, opt))
		} else {
			out = []byte(prompt.BuildOverview(sets, opt))
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func summaries(sets []*dataset.Loaded) []*analysis.Summary {
	out := make([]*analysis.Summary, 0, len(sets))
	for _, ds := range sets {
		out = append(out, analysis.Analyze(ds.Table, ds.Name, nil))
	}
	return out
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaLoad.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaAsk, "ask", "", "question whose filters narrow the data (e.g. \"escola código 100\")")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 0, "number of sample rows to include (default from config, 3)")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit the analysis summary as JSON")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
}
