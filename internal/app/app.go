package app

import (
	"context"
	"database/sql"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/config"
	"github/chapool/go-ledger/internal/fees"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/ledger/journal"
	"github/chapool/go-ledger/internal/metrics"
	"github/chapool/go-ledger/internal/settlement"
	"github/chapool/go-ledger/internal/signing"
)

// App is a central struct keeping all the dependencies of one ledger: the
// store, the fee policy, the verifier and one settlement module per
// configured asset kind.
//
// DB and Journal are nil unless the journal is enabled; Metrics is nil unless
// metrics are enabled.
type App struct {
	Config config.Server
	Clock  time2.Clock

	DB      *sql.DB
	Journal *journal.Journal

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store     *ledger.Store
	Collector *fees.Collector
	Verifier  *signing.Verifier

	// Native and Token are the in-process custody vaults backing the
	// native and token modules.
	Native *asset.Vault
	Token  *asset.Vault

	Modules Modules
}

// New wires an App from cfg through InitNewApp. Every configured module is
// trusted by the store and the configured fee policy is applied with the
// admin identity.
func New(ctx context.Context, cfg config.Server, clock time2.Clock) (*App, error) {
	if clock == nil {
		clock = time2.DefaultClock
	}
	if cfg.Ledger.NativeModuleAddress == (common.Address{}) {
		return nil, errors.New("a native module address is required")
	}

	a, err := InitNewApp(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("store", cfg.Ledger.StoreAddress.Hex()).
		Int("modules", len(a.Modules)).
		Bool("journal", a.Journal != nil).
		Bool("metrics", a.Metrics != nil).
		Msg("Ledger initialized")

	return a, nil
}

func newAppWithComponents(
	cfg config.Server,
	clock time2.Clock,
	db *sql.DB,
	j *journal.Journal,
	registry *prometheus.Registry,
	m *metrics.Metrics,
	store *ledger.Store,
	collector *fees.Collector,
	verifier *signing.Verifier,
	vaults Vaults,
	modules Modules,
) *App {
	return &App{
		Config:    cfg,
		Clock:     clock,
		DB:        db,
		Journal:   j,
		Registry:  registry,
		Metrics:   m,
		Store:     store,
		Collector: collector,
		Verifier:  verifier,
		Native:    vaults.Native,
		Token:     vaults.Token,
		Modules:   modules,
	}
}

// Module returns the settlement module of kind, if configured.
func (a *App) Module(kind asset.Kind) (*settlement.Module, bool) {
	m, ok := a.Modules[kind]
	return m, ok
}

// Ping checks the journal database, if any.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return errors.Wrap(a.DB.PingContext(ctx), "failed to ping journal database")
}

// Close releases the journal database, if any.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return errors.Wrap(a.DB.Close(), "failed to close journal database")
}
