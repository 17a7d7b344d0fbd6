package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/cli"
)

var (
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rules to a file",
	Long: `Export every rule in a form that 'apply' reads back.

Examples:
  exclusionctl export --output rules.yaml
  exclusionctl export --format json > rules.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}

		list, err := c.ListRules(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		exportFormat := cli.OutputFormat(format)
		if exportFormat == cli.FormatTable {
			exportFormat = cli.FormatYAML
		}

		var buf bytes.Buffer
		if err := cli.PrintRules(&buf, list, exportFormat); err != nil {
			return err
		}

		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}

		if err := os.WriteFile(exportOutput, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rule(s) to %s\n", len(list), exportOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
