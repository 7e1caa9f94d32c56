package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/edusight-cli/internal/prompt"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the audiences replies can be written for",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, p := range prompt.Personas {
			fmt.Fprintf(w, "%s (%s)\n  %s\n", p.Key(), p.Name(), p.Description())
			for _, s := range p.Suggestions("") {
				fmt.Fprintf(w, "  • %s\n", s)
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}
