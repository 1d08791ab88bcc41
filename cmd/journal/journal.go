package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github/chapool/go-ledger/internal/config"
	"github/chapool/go-ledger/internal/ledger/journal"
	"github/chapool/go-ledger/internal/util"
	"github/chapool/go-ledger/internal/util/command"

	// Import postgres driver for database/sql package
	_ "github.com/lib/pq"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("journal",
		newMigrate(),
	)
}

func newMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies pending journal migrations",
		Long: `Applies pending migrations to the Postgres database
configured through LEDGER_JOURNAL_* and exits.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := runMigrate(cmd.Context()); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate journal")
			}
		},
	}
}

func runMigrate(ctx context.Context) error {
	cfg := config.DefaultServiceConfigFromEnv()
	util.ConfigureGlobalLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	db, err := sql.Open("postgres", cfg.Journal.ConnectionString())
	if err != nil {
		return errors.Wrap(err, "failed to open journal database")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to reach journal database")
	}

	n, err := journal.Migrate(ctx, db)
	if err != nil {
		return err
	}

	fmt.Printf("Applied %d journal migrations\n", n)
	return nil
}
