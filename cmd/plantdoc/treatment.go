package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plantdoc/internal/treatments"
)

func (c *cli) treatmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "treatment [problem]",
		Short: "Look up treatments for a pest or disease",
		Long: `Print the organic, chemical and preventive treatments for a problem.
The problem matches a known key or name as a case-insensitive substring.
Without a problem, every known entry is listed.

Examples:
  plantdoc treatment ferrugem
  plantdoc treatment "Lagarta do Cartucho"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := treatments.Default()
			problem := strings.TrimSpace(strings.Join(args, " "))
			if problem == "" {
				return printJSON(cmd.OutOrStdout(), table.Entries())
			}
			entry, ok := table.Lookup(problem)
			if !ok {
				return fmt.Errorf("no treatment known for %q", problem)
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
}
