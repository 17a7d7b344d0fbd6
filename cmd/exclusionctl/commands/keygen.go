package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chardonneaur/VisitorExclusion/internal/auth"
	"github.com/Chardonneaur/VisitorExclusion/internal/webhook"
)

var keygenWebhookSecret bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an admin API key and its bcrypt hash",
	Long: `Generate a random admin key. Give the key to operators and put the hash in
ADMIN_API_KEY_HASH on the server so the plain key never sits in its config.

With --webhook-secret a signing secret for WEBHOOK_SECRET is generated
instead.

Examples:
  exclusionctl keygen
  exclusionctl keygen --webhook-secret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if keygenWebhookSecret {
			secret, err := webhook.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Secret:   %s\n", secret)
			fmt.Fprintln(out, "\nSet on the server:")
			fmt.Fprintf(out, "  WEBHOOK_SECRET='%s'\n", secret)
			return nil
		}

		creds, err := auth.NewAdminCredentials()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		fmt.Fprintf(out, "API key:  %s\n", creds.Key)
		fmt.Fprintf(out, "Hash:     %s\n", creds.Hash)
		fmt.Fprintln(out, "\nSet on the server:")
		fmt.Fprintf(out, "  ADMIN_API_KEY_HASH='%s'\n", creds.Hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().BoolVar(&keygenWebhookSecret, "webhook-secret", false, "Generate a webhook signing secret instead of an admin key")
}
