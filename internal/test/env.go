package test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/fees"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/metrics"
	"github/chapool/go-ledger/internal/settlement"
	"github/chapool/go-ledger/internal/signing"
)

var (
	StoreAddress  = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	ModuleAddress = common.HexToAddress("0x00000000000000000000000000000000000c0de2")
)

// InitialFunds is minted to every party account in both vaults.
var InitialFunds = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Env is a fully wired ledger with one settlement module.
type Env struct {
	Admin  Account
	Payee  Account
	Payer  Account
	Sub1   Account
	Sub2   Account
	Sink   Account
	Others []Account

	Native *asset.Vault
	Token  *asset.Vault

	Store        *ledger.Store
	Collector    *fees.Collector
	Clock        *time2.MockClock
	Verifier     *signing.Verifier
	Module       *settlement.Module
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Events       *ledger.Recorder
	ModuleEvents *ledger.Recorder
}

// NewEnv wires a store, fee collector and verifier to a module of the given
// kind. No fee rate is configured.
func NewEnv(t *testing.T, kind asset.Kind) *Env {
	t.Helper()
	ctx := context.Background()

	e := &Env{
		Admin:        NewAccount(t, 0),
		Payee:        NewAccount(t, 1),
		Payer:        NewAccount(t, 2),
		Sub1:         NewAccount(t, 3),
		Sub2:         NewAccount(t, 4),
		Sink:         NewAccount(t, 5),
		Others:       []Account{NewAccount(t, 6), NewAccount(t, 7)},
		Native:       asset.NewVault("native"),
		Token:        asset.NewVault("token"),
		Clock:        time2.NewMockClock(time.Unix(1700000000, 0)),
		Registry:     prometheus.NewRegistry(),
		Events:       ledger.NewRecorder(),
		ModuleEvents: ledger.NewRecorder(),
	}

	for _, acc := range append([]Account{e.Payee, e.Payer, e.Sub1, e.Sub2}, e.Others...) {
		e.Native.Mint(acc.Address, InitialFunds)
		e.Token.Mint(acc.Address, InitialFunds)
	}

	var err error
	e.Metrics, err = metrics.New("ledger", e.Registry)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	e.Store = ledger.NewStore(StoreAddress, e.Admin.Address)
	if err := e.Store.AddTrustedModule(ctx, e.Admin.Address, ModuleAddress); err != nil {
		t.Fatalf("failed to trust module: %v", err)
	}
	e.Store.AddSink(e.Events)

	e.Collector = fees.NewCollector(e.Admin.Address)
	if err := e.Collector.SetSink(ctx, e.Admin.Address, e.Sink.Address); err != nil {
		t.Fatalf("failed to set fee sink: %v", err)
	}

	e.Verifier = signing.NewVerifier(e.Clock)

	native := asset.NewNative(e.Native, ModuleAddress)
	var transfer asset.Transfer
	switch kind {
	case asset.KindNative:
		transfer = native
	case asset.KindToken:
		transfer = asset.NewToken(e.Token, ModuleAddress)
	case asset.KindManual:
		transfer = asset.NewManual()
	default:
		t.Fatalf("unknown asset kind %q", kind)
	}

	e.Module, err = settlement.NewModule(settlement.Config{
		Address:   ModuleAddress,
		Admin:     e.Admin.Address,
		Store:     e.Store,
		Collector: e.Collector,
		Verifier:  e.Verifier,
		Transfer:  transfer,
		Native:    native,
		Metrics:   e.Metrics,
	})
	if err != nil {
		t.Fatalf("failed to create module: %v", err)
	}
	e.Module.AddSink(e.ModuleEvents)

	return e
}

// SetFees configures the collector rate and optional cap.
func (e *Env) SetFees(t *testing.T, num, den int64, maxFees *big.Int) {
	t.Helper()
	ctx := context.Background()
	if err := e.Collector.SetRateFees(ctx, e.Admin.Address, big.NewInt(num), big.NewInt(den)); err != nil {
		t.Fatalf("failed to set rate: %v", err)
	}
	if maxFees != nil {
		if err := e.Collector.SetMaxFees(ctx, e.Admin.Address, maxFees); err != nil {
			t.Fatalf("failed to set max fees: %v", err)
		}
	}
}

// Call builds a call from acc with value attached.
func Call(acc Account, value int64) settlement.Call {
	return settlement.Call{From: acc.Address, Value: big.NewInt(value)}
}

// Amounts converts int64 values to big integers.
func Amounts(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

// Strings renders big integers for comparison in assertions.
func Strings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// Total sums both vaults. Buffered credits stay in module custody, so the
// total never changes across actions.
func (e *Env) Total() *big.Int {
	return new(big.Int).Add(e.Native.Total(), e.Token.Total())
}
