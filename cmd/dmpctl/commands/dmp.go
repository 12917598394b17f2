package commands

import (
	"github.com/dmphub-lab/dmphub/internal/core/storage/backend"
	"github.com/dmphub-lab/dmphub/internal/dmp"
	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/spf13/cobra"
)

var (
	dmpAt      string
	dmpPage    int
	dmpPerPage int
)

var dmpCmd = &cobra.Command{
	Use:   "dmp",
	Short: "Inspect stored plans",
}

var dmpGetCmd = &cobra.Command{
	Use:   "get DMP_ID",
	Short: "Print one version of a plan",
	Long: `Print a plan as the API would return it.

Examples:
  dmpctl dmp get 10.80030/ab12cd34
  dmpctl dmp get https://doi.org/10.80030/ab12cd34 --at 2024-03-01T10:00:00Z
  dmpctl dmp get 10.80030/ab12cd34 --at tombstone`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(s *dmp.Service) error {
			rec, err := s.Get(cmd.Context(), args[0], dmpAt)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var dmpOwnedCmd = &cobra.Command{
	Use:   "owned OWNER",
	Short: "List plans owned by an organization (ROR) or contact (ORCID)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd, func(s *dmp.Service) error {
			page, err := s.ByOwner(cmd.Context(), args[0], dmpPage, dmpPerPage)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		})
	},
}

// withRegistry builds a read-only registry: no contracts and no publisher.
func withRegistry(cmd *cobra.Command, fn func(s *dmp.Service) error) error {
	codec, err := identifier.NewCodec(cfg.Identifier.BaseDomain)
	if err != nil {
		return err
	}
	return withBackend(cmd.Context(), func(b *backend.Backend) error {
		return fn(dmp.NewService(b.Store, codec, nil, nil, dmp.Config{
			Shoulder:       cfg.Identifier.Shoulder,
			APIBaseURL:     cfg.Server.APIBaseURL,
			DefaultPerPage: cfg.Pagination.DefaultPerPage,
			MaxPerPage:     cfg.Pagination.MaxPerPage,
		}))
	})
}

func init() {
	dmpGetCmd.Flags().StringVar(&dmpAt, "at", "", "version timestamp or \"tombstone\" (default: latest)")
	dmpOwnedCmd.Flags().IntVar(&dmpPage, "page", 1, "page number")
	dmpOwnedCmd.Flags().IntVar(&dmpPerPage, "per-page", 0, "page size (default: pagination.default_per_page)")

	dmpCmd.AddCommand(dmpGetCmd, dmpOwnedCmd)
	rootCmd.AddCommand(dmpCmd)
}
