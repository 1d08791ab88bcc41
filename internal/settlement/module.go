package settlement

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/buffer"
	"github/chapool/go-ledger/internal/fees"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/metrics"
	"github/chapool/go-ledger/internal/signing"
	"github/chapool/go-ledger/internal/util"
)

// Module settles requests for one asset. All ledger work of an action runs
// in a single store transaction; pushes to recipients happen after commit.
//
// Lock order is store, then module.
type Module struct {
	address common.Address
	admin   common.Address

	store     *ledger.Store
	collector *fees.Collector
	verifier  *signing.Verifier
	transfer  asset.Transfer
	native    asset.Transfer
	metrics   *metrics.Metrics

	// funds holds failed payment pushes, nativeFunds failed fee forwards. They
	// are the same buffer for native modules.
	funds       *buffer.Buffer
	nativeFunds *buffer.Buffer

	mu           sync.RWMutex
	paused       bool
	paymentRefs  map[ledger.RequestID][]common.Address
	payerRefunds map[ledger.RequestID]common.Address
	sinks        []ledger.EventSink
}

// NewModule creates a settlement module. The module address must be trusted
// by the store before it can create requests.
func NewModule(cfg Config) (*Module, error) {
	if cfg.Store == nil || cfg.Collector == nil || cfg.Transfer == nil {
		return nil, errors.New("store, collector and transfer are required")
	}
	native := cfg.Native
	if native == nil {
		if cfg.Transfer.Kind() != asset.KindNative {
			return nil, errors.Errorf("a native transfer is required for %s modules", cfg.Transfer.Kind())
		}
		native = cfg.Transfer
	}
	if native.Kind() != asset.KindNative {
		return nil, errors.Errorf("fee transfer must be native, got %s", native.Kind())
	}

	m := &Module{
		address:      cfg.Address,
		admin:        cfg.Admin,
		store:        cfg.Store,
		collector:    cfg.Collector,
		verifier:     cfg.Verifier,
		transfer:     cfg.Transfer,
		native:       native,
		metrics:      cfg.Metrics,
		paymentRefs:  make(map[ledger.RequestID][]common.Address),
		payerRefunds: make(map[ledger.RequestID]common.Address),
	}

	m.funds = buffer.New(cfg.Transfer)
	m.nativeFunds = m.funds
	if native != cfg.Transfer {
		m.nativeFunds = buffer.New(native)
	}

	if m.verifier == nil {
		m.verifier = signing.NewVerifier(nil)
	}

	return m, nil
}

func (m *Module) Address() common.Address { return m.address }
func (m *Module) Kind() asset.Kind        { return m.transfer.Kind() }

// Funds is the buffer of failed payment pushes.
func (m *Module) Funds() *buffer.Buffer { return m.funds }

// NativeFunds is the buffer of failed fee forwards.
func (m *Module) NativeFunds() *buffer.Buffer { return m.nativeFunds }

// AddSink registers a sink for the module's own events.
func (m *Module) AddSink(sink ledger.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

func (m *Module) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Pause makes every action fail until Unpause.
func (m *Module) Pause(ctx context.Context, caller common.Address) error {
	return m.setPaused(ctx, caller, true)
}

func (m *Module) Unpause(ctx context.Context, caller common.Address) error {
	return m.setPaused(ctx, caller, false)
}

func (m *Module) setPaused(ctx context.Context, caller common.Address, paused bool) error {
	if caller != m.admin {
		return ledger.ErrNotAdmin
	}

	m.mu.Lock()
	m.paused = paused
	m.mu.Unlock()

	var evt ledger.Event = ledger.Unpause{Account: caller}
	if paused {
		evt = ledger.Pause{Account: caller}
	}
	m.publish(ctx, []ledger.Event{evt})
	return nil
}

// PaymentReference returns where payouts for a payee index go, or the zero
// address when they go to the payee itself.
func (m *Module) PaymentReference(id ledger.RequestID, index int) common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := m.paymentRefs[id]
	if index < 0 || index >= len(refs) {
		return common.Address{}
	}
	return refs[index]
}

// PayerRefund returns where refunds go, or the zero address when they go to
// the payer itself.
func (m *Module) PayerRefund(id ledger.RequestID) common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.payerRefunds[id]
}

// Withdraw pays out the caller's buffered payment credit.
func (m *Module) Withdraw(ctx context.Context, call Call) (*big.Int, error) {
	ctx, _ = util.WithAction(ctx, "settlement", "withdraw")
	amount, err := m.funds.Withdraw(ctx, call.From)
	m.metrics.ObserveAction(m.address.Hex(), "withdraw", err)
	return amount, err
}

// WithdrawNative pays out the caller's buffered fee credit. For native
// modules it is the same as Withdraw.
func (m *Module) WithdrawNative(ctx context.Context, call Call) (*big.Int, error) {
	ctx, _ = util.WithAction(ctx, "settlement", "withdraw_native")
	amount, err := m.nativeFunds.Withdraw(ctx, call.From)
	m.metrics.ObserveAction(m.address.Hex(), "withdraw_native", err)
	return amount, err
}

// begin opens an action: it derives the action logger and rejects the call
// while the module is paused.
func (m *Module) begin(ctx context.Context, action string, call Call) (context.Context, *zerolog.Logger, error) {
	ctx, log := util.WithAction(ctx, "settlement", action)
	sub := log.With().Str("module", m.address.Hex()).Str("caller", call.From.Hex()).Logger()
	ctx = util.WithLogger(ctx, sub)

	if m.Paused() {
		return ctx, &sub, ErrModulePaused
	}
	return ctx, &sub, nil
}

// end logs and counts a finished action.
func (m *Module) end(log *zerolog.Logger, action string, receipt *Receipt, err error) {
	m.metrics.ObserveAction(m.address.Hex(), action, err)
	if err != nil {
		log.Debug().Err(err).Msg("Settlement action rejected")
		return
	}
	log.Info().Str("request_id", receipt.RequestID.Hex()).Int("event_count", len(receipt.Events)).Msg("Settlement action committed")
}

func (m *Module) publish(ctx context.Context, events []ledger.Event) {
	if len(events) == 0 {
		return
	}

	m.mu.RLock()
	sinks := append([]ledger.EventSink(nil), m.sinks...)
	m.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Publish(ctx, events); err != nil {
			util.LogFromContext(ctx).Error().Err(err).Msg("Failed to publish settlement events")
		}
	}
}

// request reads a request within the action's transaction.
func request(tx *ledger.Tx, id ledger.RequestID) (*ledger.Request, error) {
	r, err := tx.Request(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load request %s", id.Hex())
	}
	return r, nil
}

func (m *Module) recipient(r *ledger.Request, index int) common.Address {
	if ref := m.PaymentReference(r.ID, index); ref != (common.Address{}) {
		return ref
	}
	addr, _ := r.PayeeAt(index)
	return addr
}

func (m *Module) refundRecipient(r *ledger.Request) common.Address {
	if ref := m.PayerRefund(r.ID); ref != (common.Address{}) {
		return ref
	}
	return r.Payer
}

// payeeIndexOf resolves caller to a payee position by identity or payment
// reference.
func (m *Module) payeeIndexOf(r *ledger.Request, caller common.Address) (int, bool) {
	for i := range r.PayeeCount() {
		addr, _ := r.PayeeAt(i)
		if addr == caller {
			return i, true
		}
		if ref := m.PaymentReference(r.ID, i); ref != (common.Address{}) && ref == caller {
			return i, true
		}
	}
	return 0, false
}

// registerReferences runs as the last step of a create transaction, so the
// references become visible together with the request.
func (m *Module) registerReferences(id ledger.RequestID, paymentRefs []common.Address, payerRefund common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(paymentRefs) > 0 {
		m.paymentRefs[id] = append([]common.Address(nil), paymentRefs...)
	}
	if payerRefund != (common.Address{}) {
		m.payerRefunds[id] = payerRefund
	}
}
