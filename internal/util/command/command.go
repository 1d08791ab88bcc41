package command

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github/chapool/go-ledger/internal/app"
	"github/chapool/go-ledger/internal/config"
	"github/chapool/go-ledger/internal/util"
)

// WithApp configures logging, wires an App from cfg and runs f with it. The
// App is closed once f returns.
func WithApp(ctx context.Context, cfg config.Server, f func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	util.ConfigureGlobalLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize ledger")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close ledger")
		}
	}()

	start := a.Clock.Now()
	if err := f(ctx, a); err != nil {
		log.Error().Err(err).Msg("Failed to run command")
		return err
	}

	log.Debug().Dur("duration", a.Clock.Now().Sub(start)).Msg("Command completed")
	return nil
}

// NewSubcommandGroup groups subcommands under name; run alone it prints help.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("%s related subcommands", name),
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}
