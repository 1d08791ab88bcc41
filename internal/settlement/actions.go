package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/auth"
	"github/chapool/go-ledger/internal/ledger"
)

func (m *Module) applyPayment(tx *ledger.Tx, r *ledger.Request, amounts, tips []*big.Int) ([]payout, error) {
	return m.applyPaymentTo(tx, r, amounts, tips, func(i int) common.Address { return m.recipient(r, i) })
}

// applyPaymentTo records tips as expected amount increases, then amounts as
// balance increases, skipping zero entries. It returns the pushes to make
// once the transaction commits.
func (m *Module) applyPaymentTo(tx *ledger.Tx, r *ledger.Request, amounts, tips []*big.Int, to func(int) common.Address) ([]payout, error) {
	for i := range tips {
		tip := amountAt(tips, i)
		if tip.Sign() == 0 {
			continue
		}
		if err := tx.UpdateExpectedAmount(r.ID, i, tip); err != nil {
			return nil, err
		}
	}

	var payouts []payout
	for i := range amounts {
		amount := amountAt(amounts, i)
		if amount.Sign() == 0 {
			continue
		}
		if err := tx.UpdateBalance(r.ID, i, amount); err != nil {
			return nil, err
		}
		payouts = append(payouts, payout{to: to(i), amount: new(big.Int).Set(amount)})
	}

	return payouts, nil
}

func requireOpen(r *ledger.Request) error {
	if r.State == ledger.StateCanceled {
		return ErrRequestCanceled
	}
	return nil
}

// Accept lets the payer accept a created request.
func (m *Module) Accept(ctx context.Context, call Call, id ledger.RequestID) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "accept", call)
	defer func() { m.end(log, "accept", receipt, err) }()
	if err != nil {
		return nil, err
	}
	if err := m.checkValue(call, funding{fee: new(big.Int), amount: new(big.Int)}, ErrValueMismatch); err != nil {
		return nil, err
	}

	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		if !auth.RoleOf(r, call.From).IsPayer() {
			return ErrCallerNotPayer
		}
		return tx.Accept(id)
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, nil, nil), nil
}

// Cancel cancels a request. The payer may cancel any open request; the
// primary payee only once every balance is back to zero.
func (m *Module) Cancel(ctx context.Context, call Call, id ledger.RequestID) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "cancel", call)
	defer func() { m.end(log, "cancel", receipt, err) }()
	if err != nil {
		return nil, err
	}
	if err := m.checkValue(call, funding{fee: new(big.Int), amount: new(big.Int)}, ErrValueMismatch); err != nil {
		return nil, err
	}

	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		switch auth.RoleOf(r, call.From) {
		case auth.RolePayer:
		case auth.RolePayee:
			if r.State == ledger.StateCanceled {
				return ledger.ErrAlreadyCanceled
			}
			for _, b := range r.Balances() {
				if b.Sign() != 0 {
					return ErrBalanceNotZero
				}
			}
		default:
			return ErrCallerNotParty
		}
		return tx.Cancel(id)
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, nil, nil), nil
}

// Additional lets the payer raise expected amounts, position 0 being the
// primary payee.
func (m *Module) Additional(ctx context.Context, call Call, id ledger.RequestID, amounts []*big.Int) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "additional", call)
	defer func() { m.end(log, "additional", receipt, err) }()
	if err != nil {
		return nil, err
	}
	if err := m.checkValue(call, funding{fee: new(big.Int), amount: new(big.Int)}, ErrValueMismatch); err != nil {
		return nil, err
	}

	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		if !auth.RoleOf(r, call.From).IsPayer() {
			return ErrCallerNotPayer
		}
		if err := requireOpen(r); err != nil {
			return err
		}
		if _, err := checkAmounts(amounts, r.PayeeCount()); err != nil {
			return err
		}
		for i := range amounts {
			a := amountAt(amounts, i)
			if a.Sign() == 0 {
				continue
			}
			if err := tx.UpdateExpectedAmount(id, i, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, nil, nil), nil
}

// Subtract lets the primary payee lower expected amounts. Every amount must
// be at most the current expected amount at its position, or nothing changes.
func (m *Module) Subtract(ctx context.Context, call Call, id ledger.RequestID, amounts []*big.Int) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "subtract", call)
	defer func() { m.end(log, "subtract", receipt, err) }()
	if err != nil {
		return nil, err
	}
	if err := m.checkValue(call, funding{fee: new(big.Int), amount: new(big.Int)}, ErrValueMismatch); err != nil {
		return nil, err
	}

	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		if !auth.RoleOf(r, call.From).IsPayee() {
			return ErrCallerNotPayee
		}
		if err := requireOpen(r); err != nil {
			return err
		}
		if _, err := checkAmounts(amounts, r.PayeeCount()); err != nil {
			return err
		}
		for i := range amounts {
			if amountAt(amounts, i).Cmp(r.ExpectedAt(i)) > 0 {
				return ErrSubtractTooLarge
			}
		}
		for i := range amounts {
			a := amountAt(amounts, i)
			if a.Sign() == 0 {
				continue
			}
			if err := tx.UpdateExpectedAmount(id, i, new(big.Int).Neg(a)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, nil, nil), nil
}

// Payment pays a request. Anyone may pay; only the payer may attach tips,
// and a payer paying a created request accepts it first.
func (m *Module) Payment(ctx context.Context, call Call, id ledger.RequestID, amounts, tips []*big.Int) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "payment", call)
	defer func() { m.end(log, "payment", receipt, err) }()
	if err != nil {
		return nil, err
	}

	paid, err := checkAmounts(amounts, len(amounts))
	if err != nil {
		return nil, err
	}
	f := funding{fee: new(big.Int), amount: paid}
	if err := m.checkValue(call, f, ErrValueMismatch); err != nil {
		return nil, err
	}

	var payouts []payout
	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		role := auth.RoleOf(r, call.From)
		if len(tips) > 0 && !role.IsPayer() {
			return ErrTipsPayerOnly
		}
		if err := requireOpen(r); err != nil {
			return err
		}
		if _, err := checkAmounts(amounts, r.PayeeCount()); err != nil {
			return err
		}
		if _, err := checkAmounts(tips, r.PayeeCount()); err != nil {
			return err
		}
		if role.IsPayer() && r.State == ledger.StateCreated {
			if err := tx.Accept(id); err != nil {
				return err
			}
		}
		payouts, err = m.applyPayment(tx, r, amounts, tips)
		if err != nil {
			return err
		}
		return m.pull(ctx, call, f)
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, nil, payouts), nil
}

// Refund returns amount to the payer. The caller may be any payee, identified
// by address or payment reference; that position's balance is reduced.
func (m *Module) Refund(ctx context.Context, call Call, id ledger.RequestID, amount *big.Int) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "refund", call)
	defer func() { m.end(log, "refund", receipt, err) }()
	if err != nil {
		return nil, err
	}

	if amount == nil || amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	f := funding{fee: new(big.Int), amount: amount}
	if err := m.checkValue(call, f, ErrValueMismatch); err != nil {
		return nil, err
	}

	var payouts []payout
	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		index, ok := m.payeeIndexOf(r, call.From)
		if !ok {
			return ErrCallerNotPayee
		}
		if err := requireOpen(r); err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return nil
		}
		if err := tx.UpdateBalance(id, index, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		payouts = []payout{{to: m.refundRecipient(r), amount: new(big.Int).Set(amount)}}
		return m.pull(ctx, call, f)
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, nil, payouts), nil
}
