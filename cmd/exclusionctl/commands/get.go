package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one exclusion rule",
	Long: `Show one rule and its conditions.

Examples:
  exclusionctl get 3
  exclusionctl get 3 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRuleID(args[0])
		if err != nil {
			return err
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}

		rule, err := c.GetRule(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get rule: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintRule(cmd.OutOrStdout(), rule, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func parseRuleID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", s)
	}
	return id, nil
}
