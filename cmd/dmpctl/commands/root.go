// Package commands implements dmpctl, the operator CLI for seeding
// provenances, issuing client tokens and inspecting stored plans.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dmphub-lab/dmphub/internal/config"
	"github.com/dmphub-lab/dmphub/internal/core/storage/backend"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	cfgFile string
	cfg     *config.Config

	// openBackend is replaced in tests.
	openBackend = backend.Open
)

var rootCmd = &cobra.Command{
	Use:     "dmpctl",
	Short:   "Administer a dmphub registry",
	Long:    `dmpctl talks to the registry's storage directly. It reads the same configuration file and DMPHUB_ environment variables as the server.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadUnvalidated(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: built-in defaults and DMPHUB_ environment variables)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withBackend opens the configured store for the duration of fn.
func withBackend(ctx context.Context, fn func(b *backend.Backend) error) error {
	b, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer b.Close()
	return fn(b)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
