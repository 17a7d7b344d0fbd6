package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/cli"
	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

var (
	listEnabledOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List exclusion rules",
	Long: `List every exclusion rule in ascending ID order.

Examples:
  exclusionctl list
  exclusionctl list --format json
  exclusionctl list --enabled-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}

		list, err := c.ListRules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		if listEnabledOnly {
			var enabled []rules.Rule
			for _, r := range list {
				if r.Enabled {
					enabled = append(enabled, r)
				}
			}
			list = enabled
		}

		if quiet {
			return nil
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No rules found")
			return nil
		}
		return cli.PrintRules(cmd.OutOrStdout(), list, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listEnabledOnly, "enabled-only", false, "Show only enabled rules")
}
