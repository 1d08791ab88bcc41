package journal

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"

	"github/chapool/go-ledger/internal/util"
)

// MigrationTable records which journal migrations were applied.
const MigrationTable = "journal_migrations"

// Migrations is the journal schema.
var Migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "20250301120000-create-ledger-events",
			Up: []string{
				`CREATE TABLE ledger_events (
					id uuid PRIMARY KEY,
					seq bigserial NOT NULL UNIQUE,
					source text NOT NULL,
					request_id text,
					name text NOT NULL,
					payload jsonb NOT NULL,
					created_at timestamptz NOT NULL
				)`,
				`CREATE INDEX idx_ledger_events_request_id ON ledger_events (request_id, seq)`,
			},
			Down: []string{
				`DROP TABLE ledger_events`,
			},
		},
	},
}

// Migrate applies pending journal migrations and returns how many ran.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	migrate.SetTable(MigrationTable)

	n, err := migrate.ExecContext(ctx, db, "postgres", Migrations, migrate.Up)
	if err != nil {
		return n, errors.Wrap(err, "failed to apply journal migrations")
	}

	util.LogFromContext(ctx).Info().Int("applied", n).Msg("Applied journal migrations")
	return n, nil
}
