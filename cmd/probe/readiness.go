package probe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github/chapool/go-ledger/internal/app"
	"github/chapool/go-ledger/internal/config"
	"github/chapool/go-ledger/internal/util/command"
)

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Runs readiness probes",
		Long: `Wires the ledger from the current ENV and checks that the
event journal database, if enabled, is reachable.`,
		Run: func(cmd *cobra.Command, _ []string) {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				log.Fatal().Err(err).Msgf("Failed to parse args")
			}

			if err := command.WithApp(cmd.Context(), config.DefaultServiceConfigFromEnv(), func(ctx context.Context, a *app.App) error {
				if err := a.Ping(ctx); err != nil {
					return err
				}
				if verbose {
					fmt.Printf("journal enabled: %t\n", a.Journal != nil)
				}
				return nil
			}); err != nil {
				log.Fatal().Err(err).Msg("Readiness probe failed")
			}
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}
