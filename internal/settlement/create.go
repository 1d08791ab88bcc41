package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/signing"
)

func validatePayees(payees []common.Address, amounts []*big.Int, refs []common.Address) (*big.Int, error) {
	if len(payees) == 0 {
		return nil, ErrEmptyPayees
	}
	if len(amounts) != len(payees) {
		return nil, ErrLengthMismatch
	}
	if len(refs) > len(payees) {
		return nil, ErrTooManyReferences
	}
	for _, p := range payees {
		if p == (common.Address{}) {
			return nil, ErrInvalidAddress
		}
	}
	return checkAmounts(amounts, len(payees))
}

func toLedgerPayees(payees []common.Address, amounts []*big.Int) []ledger.Payee {
	out := make([]ledger.Payee, len(payees))
	for i, p := range payees {
		out[i] = ledger.Payee{Address: p, ExpectedAmount: amountAt(amounts, i)}
	}
	return out
}

// CreateAsPayee creates a request on behalf of its primary payee. The
// attached value must equal the fee on the sum of expected amounts.
func (m *Module) CreateAsPayee(ctx context.Context, call Call, params CreateParams) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "create_as_payee", call)
	defer func() { m.end(log, "create_as_payee", receipt, err) }()
	if err != nil {
		return nil, err
	}

	total, err := validatePayees(params.Payees, params.ExpectedAmounts, params.PaymentReferences)
	if err != nil {
		return nil, err
	}
	if params.Payer == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	if call.From != params.Payees[0] {
		return nil, ErrCallerNotPayee
	}
	if params.Payer == params.Payees[0] {
		return nil, ErrPayerIsPayee
	}

	f := funding{fee: m.collector.CollectEstimation(total), amount: new(big.Int)}
	if err := m.checkValue(call, f, ErrFeeMismatch); err != nil {
		return nil, err
	}

	var id ledger.RequestID
	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		var err error
		id, err = tx.CreateRequest(ledger.CreateParams{
			Creator:   call.From,
			Payees:    toLedgerPayees(params.Payees, params.ExpectedAmounts),
			Payer:     params.Payer,
			Extension: params.Extension,
			Data:      params.Data,
		})
		if err != nil {
			return err
		}
		if err := m.pull(ctx, call, f); err != nil {
			return err
		}
		m.registerReferences(id, params.PaymentReferences, params.PayerRefund)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, f.fee, nil), nil
}

// CreateAsPayer creates and accepts a request on behalf of its payer,
// optionally raising expected amounts with tips and paying right away.
func (m *Module) CreateAsPayer(ctx context.Context, call Call, params PayerCreateParams) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "create_as_payer", call)
	defer func() { m.end(log, "create_as_payer", receipt, err) }()
	if err != nil {
		return nil, err
	}

	total, err := validatePayees(params.Payees, params.ExpectedAmounts, nil)
	if err != nil {
		return nil, err
	}
	if call.From == params.Payees[0] {
		return nil, ErrPayerIsPayee
	}
	paid, err := checkAmounts(params.Payments, len(params.Payees))
	if err != nil {
		return nil, err
	}
	if _, err := checkAmounts(params.Tips, len(params.Payees)); err != nil {
		return nil, err
	}

	f := funding{fee: m.collector.CollectEstimation(total), amount: paid}
	if err := m.checkValue(call, f, ErrFeeMismatch); err != nil {
		return nil, err
	}

	var (
		id      ledger.RequestID
		payouts []payout
	)
	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		var err error
		id, err = tx.CreateRequest(ledger.CreateParams{
			Creator:   call.From,
			Payees:    toLedgerPayees(params.Payees, params.ExpectedAmounts),
			Payer:     call.From,
			Extension: params.Extension,
			Data:      params.Data,
		})
		if err != nil {
			return err
		}
		if err := tx.Accept(id); err != nil {
			return err
		}
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		payouts, err = m.applyPayment(tx, r, params.Payments, params.Tips)
		if err != nil {
			return err
		}
		if err := m.pull(ctx, call, f); err != nil {
			return err
		}
		m.registerReferences(id, nil, params.PayerRefund)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, f.fee, payouts), nil
}

// BroadcastSignedRequestAsPayer instantiates a request pre-signed by its
// primary payee. The caller becomes the payer; the request is accepted and
// optionally paid in the same action.
func (m *Module) BroadcastSignedRequestAsPayer(ctx context.Context, call Call, payload *signing.Payload, opts BroadcastOptions) (receipt *Receipt, err error) {
	ctx, log, err := m.begin(ctx, "broadcast_signed_request", call)
	defer func() { m.end(log, "broadcast_signed_request", receipt, err) }()
	if err != nil {
		return nil, err
	}

	if _, err := m.verifier.Verify(ctx, m.address, payload); err != nil {
		return nil, err
	}

	total, err := validatePayees(payload.Payees, payload.ExpectedAmounts, payload.PaymentReferences)
	if err != nil {
		return nil, err
	}
	if payload.Payer != (common.Address{}) && payload.Payer != call.From {
		return nil, ErrCallerNotPayer
	}
	if call.From == payload.Payees[0] {
		return nil, ErrPayerIsPayee
	}
	paid, err := checkAmounts(opts.Payments, len(payload.Payees))
	if err != nil {
		return nil, err
	}
	if _, err := checkAmounts(opts.Tips, len(payload.Payees)); err != nil {
		return nil, err
	}

	f := funding{fee: m.collector.CollectEstimation(total), amount: paid}
	if err := m.checkValue(call, f, ErrFeeMismatch); err != nil {
		return nil, err
	}

	var (
		id      ledger.RequestID
		payouts []payout
	)
	events, err := m.store.Update(ctx, m.address, func(tx *ledger.Tx) error {
		var err error
		id, err = tx.CreateRequest(ledger.CreateParams{
			Creator: payload.Payees[0],
			Payees:  toLedgerPayees(payload.Payees, payload.ExpectedAmounts),
			Payer:   call.From,
			Data:    payload.Data,
		})
		if err != nil {
			return err
		}
		if err := tx.Accept(id); err != nil {
			return err
		}
		r, err := request(tx, id)
		if err != nil {
			return err
		}
		// references are registered last; resolve payouts against the payload
		payouts, err = m.applyPaymentTo(tx, r, opts.Payments, opts.Tips, func(i int) common.Address {
			if i < len(payload.PaymentReferences) && payload.PaymentReferences[i] != (common.Address{}) {
				return payload.PaymentReferences[i]
			}
			addr, _ := r.PayeeAt(i)
			return addr
		})
		if err != nil {
			return err
		}
		if err := m.pull(ctx, call, f); err != nil {
			return err
		}
		m.registerReferences(id, payload.PaymentReferences, opts.PayerRefund)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m.settle(ctx, id, events, f.fee, payouts), nil
}
