package buffer

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

var (
	ErrNothingToWithdraw = ledger.NewError(ledger.KindState, "no funds available to withdraw")
	ErrNegativeCredit    = ledger.NewError(ledger.KindValidation, "credit must not be negative")
)

// Buffer accumulates value owed to recipients whose push failed. Recipients
// pull it later through Withdraw.
type Buffer struct {
	mu      sync.Mutex
	pusher  asset.Pusher
	credits map[common.Address]*big.Int
	total   *big.Int
}

// New creates a buffer that pays withdrawals through pusher.
func New(pusher asset.Pusher) *Buffer {
	return &Buffer{
		pusher:  pusher,
		credits: make(map[common.Address]*big.Int),
		total:   new(big.Int),
	}
}

// Credit adds amount to what recipient can withdraw.
func (b *Buffer) Credit(recipient common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeCredit
	}
	if amount.Sign() == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.credits[recipient] = new(big.Int).Add(b.availableLocked(recipient), amount)
	b.total.Add(b.total, amount)
	return nil
}

// Available returns the credit held for recipient.
func (b *Buffer) Available(recipient common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.availableLocked(recipient))
}

// Total returns the sum of all outstanding credits.
func (b *Buffer) Total() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.total)
}

// Withdraw pays out the full credit of recipient. The credit is cleared
// before the push, so a recipient re-entering Withdraw sees nothing left; if
// the push fails the credit is restored.
func (b *Buffer) Withdraw(ctx context.Context, recipient common.Address) (*big.Int, error) {
	l := util.LogFromContext(ctx).With().Str("component", "buffer").Str("recipient", recipient.Hex()).Logger()

	b.mu.Lock()
	amount := b.availableLocked(recipient)
	if amount.Sign() == 0 {
		b.mu.Unlock()
		return nil, ErrNothingToWithdraw
	}
	delete(b.credits, recipient)
	b.total.Sub(b.total, amount)
	b.mu.Unlock()

	if err := b.pusher.Push(ctx, recipient, amount); err != nil {
		l.Warn().Err(err).Str("amount", amount.String()).Msg("Withdrawal push failed, restoring credit")
		if cerr := b.Credit(recipient, amount); cerr != nil {
			return nil, errors.Wrap(cerr, "failed to restore credit")
		}
		return nil, errors.Wrap(err, "failed to withdraw")
	}

	l.Info().Str("amount", amount.String()).Msg("Withdrew buffered funds")
	return amount, nil
}

func (b *Buffer) availableLocked(recipient common.Address) *big.Int {
	if c, ok := b.credits[recipient]; ok {
		return c
	}
	return new(big.Int)
}
