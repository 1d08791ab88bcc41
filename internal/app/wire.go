//go:build wireinject

package app

import (
	"context"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/wire"
	"github/chapool/go-ledger/internal/config"
	"github/chapool/go-ledger/internal/signing"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// ledgerSet groups the providers required for wiring a ledger.
var ledgerSet = wire.NewSet(
	newAppWithComponents,
	NewRegistry,
	NewMetrics,
	NewDB,
	NewJournal,
	NewStore,
	NewCollector,
	signing.NewVerifier,
	NewVaults,
	NewModules,
)

// InitNewApp returns a new App instance. Prefer New, which validates cfg and
// defaults the clock first.
func InitNewApp(
	_ context.Context,
	_ config.Server,
	_ time2.Clock,
) (*App, error) {
	wire.Build(ledgerSet)
	return new(App), nil
}
