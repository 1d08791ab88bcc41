package app

import (
	"context"
	"database/sql"
	"math/big"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/config"
	"github/chapool/go-ledger/internal/fees"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/ledger/journal"
	"github/chapool/go-ledger/internal/metrics"
	"github/chapool/go-ledger/internal/settlement"
	"github/chapool/go-ledger/internal/signing"

	// Import postgres driver for database/sql package
	_ "github.com/lib/pq"
)

// Vaults are the in-process custody vaults of one ledger.
type Vaults struct {
	Native *asset.Vault
	Token  *asset.Vault
}

// Modules are the configured settlement modules by asset kind.
type Modules map[asset.Kind]*settlement.Module

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// NewMetrics returns nil when metrics are disabled.
func NewMetrics(cfg config.Server, registry *prometheus.Registry) (*metrics.Metrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil //nolint:nilnil
	}
	return metrics.New(cfg.Metrics.Namespace, registry)
}

// NewDB opens the journal database and registers its pool stats. It returns
// nil when the journal is disabled.
func NewDB(cfg config.Server, registry *prometheus.Registry) (*sql.DB, error) {
	if !cfg.Journal.Enabled {
		return nil, nil //nolint:nilnil
	}

	db, err := sql.Open("postgres", cfg.Journal.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal database")
	}

	db.SetMaxOpenConns(cfg.Journal.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Journal.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Journal.ConnMaxLifetime)

	if err := registry.Register(sqlstats.NewStatsCollector(cfg.Journal.Database, db)); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to register journal database stats")
	}

	return db, nil
}

// NewJournal returns the store's journal, or nil without a database.
func NewJournal(cfg config.Server, db *sql.DB, clock time2.Clock) *journal.Journal {
	if db == nil {
		return nil
	}
	return journal.New(db, cfg.Ledger.StoreAddress, clock)
}

func NewStore(cfg config.Server, j *journal.Journal) *ledger.Store {
	store := ledger.NewStore(cfg.Ledger.StoreAddress, cfg.Ledger.AdminAddress)
	if j != nil {
		store.AddSink(j)
	}
	return store
}

// NewCollector creates the fee collector and applies the configured policy
// with the admin identity.
func NewCollector(ctx context.Context, cfg config.Server, j *journal.Journal) (*fees.Collector, error) {
	admin := cfg.Ledger.AdminAddress
	c := fees.NewCollector(admin)
	if j != nil {
		c.AddSink(j)
	}

	f := cfg.Fees
	if f.RateNumerator != 0 || f.RateDenominator != 0 {
		if err := c.SetRateFees(ctx, admin, big.NewInt(f.RateNumerator), big.NewInt(f.RateDenominator)); err != nil {
			return nil, errors.Wrap(err, "failed to set fee rate")
		}
	}
	if f.MaxFees != nil {
		if err := c.SetMaxFees(ctx, admin, f.MaxFees); err != nil {
			return nil, errors.Wrap(err, "failed to set max fees")
		}
	}
	if f.SinkAddress != (common.Address{}) {
		if err := c.SetSink(ctx, admin, f.SinkAddress); err != nil {
			return nil, errors.Wrap(err, "failed to set fee sink")
		}
	}

	return c, nil
}

func NewVaults() Vaults {
	return Vaults{
		Native: asset.NewVault("native"),
		Token:  asset.NewVault("token"),
	}
}

// NewModules creates one settlement module per configured address and
// trusts it in the store. Each module journals its own events when db is set.
func NewModules(
	ctx context.Context,
	cfg config.Server,
	store *ledger.Store,
	collector *fees.Collector,
	verifier *signing.Verifier,
	vaults Vaults,
	m *metrics.Metrics,
	db *sql.DB,
	clock time2.Clock,
) (Modules, error) {
	native := asset.NewNative(vaults.Native, cfg.Ledger.NativeModuleAddress)
	candidates := []struct {
		address  common.Address
		transfer asset.Transfer
	}{
		{cfg.Ledger.NativeModuleAddress, native},
		{cfg.Ledger.TokenModuleAddress, asset.NewToken(vaults.Token, cfg.Ledger.TokenModuleAddress)},
		{cfg.Ledger.ManualModuleAddress, asset.NewManual()},
	}

	modules := make(Modules)
	for _, c := range candidates {
		if c.address == (common.Address{}) {
			continue
		}

		module, err := settlement.NewModule(settlement.Config{
			Address:   c.address,
			Admin:     cfg.Ledger.AdminAddress,
			Store:     store,
			Collector: collector,
			Verifier:  verifier,
			Transfer:  c.transfer,
			Native:    native,
			Metrics:   m,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create %s module", c.transfer.Kind())
		}

		if db != nil {
			module.AddSink(journal.New(db, c.address, clock))
		}

		if err := store.AddTrustedModule(ctx, cfg.Ledger.AdminAddress, c.address); err != nil {
			return nil, errors.Wrapf(err, "failed to trust %s module", c.transfer.Kind())
		}

		modules[c.transfer.Kind()] = module
	}

	return modules, nil
}
