package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edusight-cli/internal/chart"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

var (
	chLoad       loadFlags
	chAsk        string
	chOutputPath string
)

var chartCmd = &cobra.Command{
	Use:   "chart <files...>",
	Short: "Select a chart for a question and print it as Plotly JSON",
	Example: `  edusight chart saresp.csv --ask "mostre a distribuição das notas"
  edusight chart saresp.csv --ask "compare por gênero na escola código 100" --output fig.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if chAsk == "" {
			return fmt.Errorf("--ask is required")
		}
		sets, err := loadDatasets(cmd, args, &chLoad)
		if err != nil {
			return err
		}
		table, filtered := sets[0].Table, false
		if m, ok := filter.ApplyFirst(sets, newExtractor().Extract(chAsk)); ok {
			table, filtered = m.Table, true
		}
		spec, err := chart.Select(chAsk, table, filtered)
		if err != nil {
			logger.Warn("chart construction failed", zap.Error(err))
			spec = nil
		}
		if spec == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No chart applies to this request")
			return nil
		}
		fig, err := spec.Figure()
		if err != nil {
			return err
		}
		if chOutputPath != "" {
			if err := utils.SafeWriteFile(chOutputPath, fig); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s chart to %s\n", spec.Kind, chOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(fig))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
	chLoad.register(chartCmd)
	chartCmd.Flags().StringVar(&chAsk, "ask", "", "question that selects the chart (required)")
	chartCmd.Flags().StringVarP(&chOutputPath, "output", "o", "", "optional path to write the figure JSON")
}
