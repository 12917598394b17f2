package commands

import (
	"fmt"
	"time"

	"github.com/dmphub-lab/dmphub/internal/auth"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue bearer tokens for client systems",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue CLIENT_ID",
	Short: "Sign a bearer token with the configured auth.signing_key",
	Long: `Sign a bearer token for CLIENT_ID. The registry maps the client id to
a provenance through auth.client_aliases or the provenance's client ids.

Examples:
  dmpctl token issue dmptool-prod --ttl 24h
  curl -H "Authorization: Bearer $(dmpctl token issue dmptool-prod)" ...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.SigningKey == "" {
			return fmt.Errorf("auth.signing_key is not configured")
		}
		if tokenTTL <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		tokens := auth.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer)
		token, err := tokens.Issue(args[0], tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "", "subject claim (defaults to empty)")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")

	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
