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

func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Runs liveness probes",
		Long: `Wires the ledger from the current ENV and exits non-zero
when the configuration cannot produce a working ledger.`,
		Run: func(cmd *cobra.Command, _ []string) {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				log.Fatal().Err(err).Msgf("Failed to parse args")
			}

			if err := command.WithApp(cmd.Context(), config.DefaultServiceConfigFromEnv(), func(_ context.Context, a *app.App) error {
				if verbose {
					for kind, m := range a.Modules {
						fmt.Printf("%s module %s\n", kind, m.Address().Hex())
					}
				}
				return nil
			}); err != nil {
				log.Fatal().Err(err).Msg("Liveness probe failed")
			}
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}
