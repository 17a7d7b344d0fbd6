package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/cli"
	"github.com/Chardonneaur/VisitorExclusion/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	profile string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "exclusionctl",
	Short: "CLI tool for managing visitor exclusion rules",
	Long: `exclusionctl manages the rules that decide which tracking events are dropped
before they are recorded.

Examples:
  exclusionctl list
  exclusionctl get 3 --format yaml
  exclusionctl apply -f rules.yaml
  exclusionctl export --output rules.yaml
  exclusionctl check --ua "Mozilla/5.0 (compatible; Googlebot/2.1)"`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the exclusion API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Profile from ~/.exclusionctl/config.yaml")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

// newClient resolves the active profile. Admin commands pass needKey.
func newClient(needKey bool) (*client.Client, error) {
	p, err := cli.ResolveProfile(profile, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if needKey && p.APIKey == "" {
		return nil, errors.New("configuration error: an admin API key is required (--api-key or " + cli.EnvAPIKey + ")")
	}
	return client.NewClient(p.BaseURL, p.APIKey), nil
}
