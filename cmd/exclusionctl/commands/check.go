package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/cli"
	"github.com/Chardonneaur/VisitorExclusion/internal/client"
)

var checkEvent client.CheckRequest
var checkDimensions []string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask the server whether an event would be excluded",
	Long: `Describe a tracking event with flags and print the server's decision.
Useful to try out a rule before relying on it.

Examples:
  exclusionctl check --ip 10.1.2.3
  exclusionctl check --ua "Mozilla/5.0 (compatible; bingbot/2.0)" --url https://example.com/
  exclusionctl check --dimension 3=internal --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		event := checkEvent
		dims, err := parseDimensions(checkDimensions)
		if err != nil {
			return err
		}
		event.Dimensions = dims

		c, err := newClient(false)
		if err != nil {
			return err
		}

		result, err := c.Check(cmd.Context(), event)
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		if quiet {
			return nil
		}
		return cli.PrintCheckResult(cmd.OutOrStdout(), result, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	f := checkCmd.Flags()
	f.StringVar(&checkEvent.IP, "ip", "", "Visitor IP address")
	f.StringVar(&checkEvent.UserAgent, "ua", "", "User-Agent header")
	f.StringVar(&checkEvent.PageURL, "url", "", "Page URL")
	f.StringVar(&checkEvent.ReferrerURL, "referrer", "", "Referrer URL")
	f.StringVar(&checkEvent.AcceptLanguage, "lang", "", "Accept-Language header")
	f.StringVar(&checkEvent.Resolution, "resolution", "", "Screen resolution, e.g. 1920x1080")
	f.BoolVar(&checkEvent.AlreadyExcluded, "already-excluded", false, "Mark the event as excluded upstream")
	f.StringArrayVar(&checkDimensions, "dimension", nil, "Custom dimension as N=value (repeatable)")
}

func parseDimensions(raw []string) (map[int]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dims := make(map[int]string, len(raw))
	for _, entry := range raw {
		slot, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid dimension %q, expected N=value", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(slot))
		if err != nil {
			return nil, fmt.Errorf("invalid dimension slot %q", slot)
		}
		dims[n] = value
	}
	return dims, nil
}
