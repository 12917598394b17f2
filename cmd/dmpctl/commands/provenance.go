package commands

import (
	"fmt"

	"github.com/dmphub-lab/dmphub/internal/core/storage/backend"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/spf13/cobra"
)

var (
	provDisplayName string
	provSeeding     bool
	provCallbackURI string
	provHomepage    string
	provDescription string
	provClientIDs   []string
)

var provenanceCmd = &cobra.Command{
	Use:   "provenance",
	Short: "Manage registered client systems",
}

var provenancePutCmd = &cobra.Command{
	Use:   "put NAME",
	Short: "Create or replace a provenance",
	Long: `Create or replace a provenance record.

Examples:
  # Register a system that mints its own DMP IDs while seeding
  dmpctl provenance put dmptool --display-name "DMPTool" --seeding --client-id dmptool-prod

  # Allow several OAuth clients to act as the same provenance
  dmpctl provenance put zenodo --client-id zenodo-a --client-id zenodo-b`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &provenance.Provenance{
			Name:                  args[0],
			DisplayName:           provDisplayName,
			SeedingWithLiveDmpIDs: provSeeding,
			CallbackURI:           provCallbackURI,
			Homepage:              provHomepage,
			Description:           provDescription,
			ClientIDs:             provClientIDs,
		}
		return withBackend(cmd.Context(), func(b *backend.Backend) error {
			if err := provenance.NewStore(b.Store).Put(cmd.Context(), p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var provenanceGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Show one provenance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(b *backend.Backend) error {
			p, err := provenance.NewStore(b.Store).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		})
	},
}

var provenanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every provenance as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(b *backend.Backend) error {
			all, err := provenance.NewStore(b.Store).List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), all)
		})
	},
}

var provenanceDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a provenance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(b *backend.Backend) error {
			if err := provenance.NewStore(b.Store).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	f := provenancePutCmd.Flags()
	f.StringVar(&provDisplayName, "display-name", "", "human readable name")
	f.BoolVar(&provSeeding, "seeding", false, "accept caller-supplied DMP IDs verbatim")
	f.StringVar(&provCallbackURI, "callback-uri", "", "URI notified when another system amends one of its plans")
	f.StringVar(&provHomepage, "homepage", "", "homepage URL")
	f.StringVar(&provDescription, "description", "", "free text description")
	f.StringArrayVar(&provClientIDs, "client-id", nil, "OAuth client id allowed to act as this provenance (repeatable)")

	provenanceCmd.AddCommand(provenancePutCmd, provenanceGetCmd, provenanceListCmd, provenanceDeleteCmd)
	rootCmd.AddCommand(provenanceCmd)
}
