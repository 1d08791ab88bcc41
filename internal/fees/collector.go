package fees

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/util"
)

// Crediter records value owed to a recipient when a push fails.
type Crediter interface {
	Credit(recipient common.Address, amount *big.Int) error
}

// Collector holds the fee policy shared by settlement modules.
type Collector struct {
	mu    sync.RWMutex
	admin common.Address

	rateNumerator   *big.Int
	rateDenominator *big.Int
	maxFees         *big.Int
	sink            common.Address

	// held are fees collected while no sink was set. They are credited to
	// the sink through their custody's fallback once one is set.
	held []heldFee

	sinks []ledger.EventSink
}

type heldFee struct {
	fallback Crediter
	amount   *big.Int
}

// NewCollector creates a collector with no rate configured; every estimate
// is 0 until SetRateFees is called.
func NewCollector(admin common.Address) *Collector {
	return &Collector{
		admin:           admin,
		rateNumerator:   new(big.Int),
		rateDenominator: new(big.Int),
	}
}

// AddSink registers a sink for fee policy events.
func (c *Collector) AddSink(sink ledger.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// SetRateFees sets the fee rate to num/den. A zero denominator means the fee
// is amount*num with no division.
func (c *Collector) SetRateFees(ctx context.Context, caller common.Address, num, den *big.Int) error {
	if caller != c.admin {
		return ledger.ErrNotAdmin
	}
	if num == nil || num.Sign() < 0 || den == nil || den.Sign() < 0 {
		return ErrNegativeRate
	}

	c.mu.Lock()
	c.rateNumerator = new(big.Int).Set(num)
	c.rateDenominator = new(big.Int).Set(den)
	c.mu.Unlock()

	c.publish(ctx, ledger.UpdateRateFees{Numerator: new(big.Int).Set(num), Denominator: new(big.Int).Set(den)})
	return nil
}

// SetMaxFees caps every estimate at maxFees. A nil cap removes it.
func (c *Collector) SetMaxFees(ctx context.Context, caller common.Address, maxFees *big.Int) error {
	if caller != c.admin {
		return ledger.ErrNotAdmin
	}
	if maxFees != nil && maxFees.Sign() < 0 {
		return ErrNegativeCap
	}

	c.mu.Lock()
	if maxFees == nil {
		c.maxFees = nil
	} else {
		c.maxFees = new(big.Int).Set(maxFees)
	}
	c.mu.Unlock()

	var evt ledger.UpdateMaxFees
	if maxFees != nil {
		evt.MaxFees = new(big.Int).Set(maxFees)
	}
	c.publish(ctx, evt)
	return nil
}

// SetSink sets the address fees are forwarded to. Fees held while no sink
// was set are credited to the new sink and become withdrawable from the
// buffer of the module that collected them.
func (c *Collector) SetSink(ctx context.Context, caller common.Address, sink common.Address) error {
	if caller != c.admin {
		return ledger.ErrNotAdmin
	}

	c.mu.Lock()
	c.sink = sink
	var held []heldFee
	if sink != (common.Address{}) {
		held, c.held = c.held, nil
	}
	c.mu.Unlock()

	var failed []heldFee
	for _, h := range held {
		if err := h.fallback.Credit(sink, h.amount); err != nil {
			util.LogFromContext(ctx).Error().Err(err).Str("sink", sink.Hex()).Str("amount", h.amount.String()).Msg("Failed to credit held fee to sink")
			failed = append(failed, h)
		}
	}

	if len(failed) > 0 {
		c.mu.Lock()
		c.held = append(c.held, failed...)
		c.mu.Unlock()
		return errors.New("failed to credit held fees to sink")
	}
	return nil
}

// Held returns the fees collected while no sink was set.
func (c *Collector) Held() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := new(big.Int)
	for _, h := range c.held {
		total.Add(total, h.amount)
	}
	return total
}

func (c *Collector) Sink() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sink
}

// Rate returns the configured numerator and denominator.
func (c *Collector) Rate() (*big.Int, *big.Int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return new(big.Int).Set(c.rateNumerator), new(big.Int).Set(c.rateDenominator)
}

// MaxFees returns the cap, or nil when none is set.
func (c *Collector) MaxFees() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.maxFees == nil {
		return nil
	}
	return new(big.Int).Set(c.maxFees)
}

// CollectEstimation returns the fee owed for amount.
func (c *Collector) CollectEstimation(amount *big.Int) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if amount == nil || amount.Sign() <= 0 || c.rateNumerator.Sign() == 0 {
		return new(big.Int)
	}

	fee := new(big.Int).Mul(amount, c.rateNumerator)
	if c.rateDenominator.Sign() == 0 {
		return fee
	}

	fee.Quo(fee, c.rateDenominator)
	if c.maxFees != nil && fee.Cmp(c.maxFees) > 0 {
		return new(big.Int).Set(c.maxFees)
	}
	return fee
}

// Forward pushes a collected fee from custody to the sink. When the push
// fails the fee is credited to the sink through fallback instead, and
// deferred is true. Without a sink the fee is held until SetSink.
func (c *Collector) Forward(ctx context.Context, via asset.Pusher, fallback Crediter, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() == 0 {
		return false, nil
	}

	c.mu.Lock()
	sink := c.sink
	if sink == (common.Address{}) {
		c.held = append(c.held, heldFee{fallback: fallback, amount: new(big.Int).Set(amount)})
	}
	c.mu.Unlock()

	l := util.LogFromContext(ctx).With().Str("component", "fees").Str("sink", sink.Hex()).Str("amount", amount.String()).Logger()

	if sink == (common.Address{}) {
		l.Warn().Msg("No fee sink configured, holding fee until one is set")
		return false, nil
	}

	if err := via.Push(ctx, sink, amount); err != nil {
		l.Warn().Err(err).Msg("Failed to forward fee, crediting withdrawal buffer")
		if err := fallback.Credit(sink, amount); err != nil {
			return false, errors.Wrap(err, "failed to credit fee to sink")
		}
		return true, nil
	}

	l.Debug().Msg("Forwarded fee")
	return false, nil
}

func (c *Collector) publish(ctx context.Context, e ledger.Event) {
	c.mu.RLock()
	sinks := append([]ledger.EventSink(nil), c.sinks...)
	c.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Publish(ctx, []ledger.Event{e}); err != nil {
			util.LogFromContext(ctx).Error().Err(err).Str("event", e.EventName()).Msg("Failed to publish fee event")
		}
	}
}
