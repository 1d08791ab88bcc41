package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/util"
)

// payout is a push scheduled for after commit.
type payout struct {
	to     common.Address
	amount *big.Int
}

// funding is what an action takes from its caller.
type funding struct {
	// fee is paid in native value and forwarded to the sink.
	fee *big.Int
	// amount is moved with the module's transfer.
	amount *big.Int
}

func valueOf(call Call) *big.Int {
	if call.Value == nil {
		return new(big.Int)
	}
	return call.Value
}

// checkAmounts validates a positional amount array against a request with
// payeeCount slots and returns its sum. Nil entries count as zero.
func checkAmounts(amounts []*big.Int, payeeCount int) (*big.Int, error) {
	if len(amounts) > payeeCount {
		return nil, ErrTooManyAmounts
	}
	sum := new(big.Int)
	for _, a := range amounts {
		if a == nil {
			continue
		}
		if a.Sign() < 0 {
			return nil, ErrNegativeAmount
		}
		sum.Add(sum, a)
	}
	return sum, nil
}

func amountAt(amounts []*big.Int, i int) *big.Int {
	if i >= len(amounts) || amounts[i] == nil {
		return new(big.Int)
	}
	return amounts[i]
}

// checkValue compares the attached value with what f requires. Native
// modules take fee and amount as attached value; other kinds only the fee.
func (m *Module) checkValue(call Call, f funding, mismatch error) error {
	due := new(big.Int).Set(f.fee)
	if m.transfer.Kind() == asset.KindNative {
		due.Add(due, f.amount)
	}
	if valueOf(call).Cmp(due) != 0 {
		return errors.Wrapf(mismatch, "attached %s, due %s", valueOf(call), due)
	}
	return nil
}

// pull takes f from the caller into custody. It runs as the last step of a
// store transaction so that a failure rolls the whole action back.
func (m *Module) pull(ctx context.Context, call Call, f funding) error {
	value := valueOf(call)

	if m.transfer.Kind() == asset.KindToken && f.amount.Sign() > 0 {
		if err := m.transfer.Pull(ctx, call.From, f.amount); err != nil {
			return errors.Wrap(ErrInsufficientFunds, err.Error())
		}
		if err := m.native.Pull(ctx, call.From, value); err != nil {
			if rerr := m.transfer.Push(ctx, call.From, f.amount); rerr != nil {
				util.LogFromContext(ctx).Error().Err(rerr).Msg("Failed to return pulled tokens")
			}
			return errors.Wrap(ErrInsufficientFunds, err.Error())
		}
		return nil
	}

	if err := m.native.Pull(ctx, call.From, value); err != nil {
		return errors.Wrap(ErrInsufficientFunds, err.Error())
	}
	return nil
}

// settle runs after commit: it forwards the fee and pushes payouts. Failed
// pushes become buffer credits and are reported as FundsAvailableToWithdraw.
func (m *Module) settle(ctx context.Context, id ledger.RequestID, events []ledger.Event, fee *big.Int, payouts []payout) *Receipt {
	log := util.LogFromContext(ctx).With().Str("request_id", id.Hex()).Logger()

	var notices []ledger.Event

	if fee != nil && fee.Sign() > 0 {
		deferred, err := m.collector.Forward(ctx, m.native, m.nativeFunds, fee)
		switch {
		case err != nil:
			log.Error().Err(err).Str("fee", fee.String()).Msg("Failed to settle fee")
		case deferred:
			notices = append(notices, ledger.FundsAvailableToWithdraw{RequestID: id, Recipient: m.collector.Sink(), Amount: new(big.Int).Set(fee)})
		}
		m.metrics.ObserveFeeForwarded(m.address.Hex(), deferred)
	}

	for _, p := range payouts {
		if p.amount.Sign() == 0 {
			continue
		}
		err := m.transfer.Push(ctx, p.to, p.amount)
		if err == nil {
			continue
		}

		log.Warn().Err(err).Str("recipient", p.to.Hex()).Str("amount", p.amount.String()).Msg("Push failed, crediting withdrawal buffer")
		if cerr := m.funds.Credit(p.to, p.amount); cerr != nil {
			log.Error().Err(cerr).Str("recipient", p.to.Hex()).Msg("Failed to credit withdrawal buffer")
			continue
		}
		m.metrics.ObserveDeferred(m.address.Hex())
		notices = append(notices, ledger.FundsAvailableToWithdraw{RequestID: id, Recipient: p.to, Amount: new(big.Int).Set(p.amount)})
	}

	m.publish(ctx, notices)

	all := make([]ledger.Event, 0, len(events)+len(notices))
	all = append(all, events...)
	all = append(all, notices...)

	if fee == nil {
		fee = new(big.Int)
	}
	return &Receipt{RequestID: id, Events: all, Fee: fee}
}
