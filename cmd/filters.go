package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/utils"
)

var filtersJSON bool

var filtersCmd = &cobra.Command{
	Use:   "filters <text>",
	Short: "Show the filters a question would apply",
	Example: `  edusight filters "Analise a escola código 100"
  edusight filters "alunas do 7º ano da turma B" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newExtractor().Extract(strings.Join(args, " "))
		w := cmd.OutOrStdout()
		if filtersJSON {
			m := map[string]string{}
			for _, k := range c.Keys() {
				v, _ := c.Value(k)
				m[k] = v
			}
			out, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(out))
			return nil
		}
		if c.Empty() {
			fmt.Fprintln(w, "No filters found")
			return nil
		}
		for _, k := range c.Keys() {
			v, _ := c.Value(k)
			if k == dataset.ColGender {
				v += " (" + filter.GenderLabel(v) + ")"
			}
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filtersCmd)
	filtersCmd.Flags().BoolVar(&filtersJSON, "json", false, "emit criteria as JSON")
}
