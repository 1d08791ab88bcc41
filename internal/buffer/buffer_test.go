package buffer_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/buffer"
	"github/chapool/go-ledger/internal/ledger"
)

var (
	custody   = common.HexToAddress("0xc0")
	recipient = common.HexToAddress("0xbe")
)

func TestCreditAndWithdraw(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("eth")
	v.Mint(custody, big.NewInt(100))
	b := buffer.New(asset.NewNative(v, custody))

	_, err := b.Withdraw(ctx, recipient)
	require.ErrorIs(t, err, buffer.ErrNothingToWithdraw)
	assert.Equal(t, ledger.KindState, ledger.KindOf(err))

	require.NoError(t, b.Credit(recipient, big.NewInt(30)))
	require.NoError(t, b.Credit(recipient, big.NewInt(12)))
	require.ErrorIs(t, b.Credit(recipient, big.NewInt(-1)), buffer.ErrNegativeCredit)
	assert.Equal(t, "42", b.Available(recipient).String())
	assert.Equal(t, "42", b.Total().String())

	amount, err := b.Withdraw(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, "42", amount.String())
	assert.Equal(t, "42", v.BalanceOf(recipient).String())
	assert.Equal(t, "0", b.Available(recipient).String())
	assert.Equal(t, "0", b.Total().String())
}

func TestWithdrawRestoresCreditOnFailure(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("eth")
	v.Mint(custody, big.NewInt(100))
	b := buffer.New(asset.NewNative(v, custody))
	require.NoError(t, b.Credit(recipient, big.NewInt(10)))

	v.SetReceiver(recipient, func(context.Context, common.Address, *big.Int) error {
		return errors.New("reverted")
	})

	_, err := b.Withdraw(ctx, recipient)
	require.ErrorIs(t, err, asset.ErrTransferFailed)
	assert.Equal(t, "10", b.Available(recipient).String())
	assert.Equal(t, "100", v.BalanceOf(custody).String())
}

func TestWithdrawReentryFindsNothing(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("eth")
	v.Mint(custody, big.NewInt(100))
	b := buffer.New(asset.NewNative(v, custody))
	require.NoError(t, b.Credit(recipient, big.NewInt(10)))

	var reentryErr error
	v.SetReceiver(recipient, func(ctx context.Context, _ common.Address, _ *big.Int) error {
		_, reentryErr = b.Withdraw(ctx, recipient)
		return nil
	})

	amount, err := b.Withdraw(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, "10", amount.String())
	require.ErrorIs(t, reentryErr, buffer.ErrNothingToWithdraw)
	assert.Equal(t, "10", v.BalanceOf(recipient).String())
	assert.Equal(t, "90", v.BalanceOf(custody).String())
}
