package asset_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger/internal/asset"
)

var (
	alice   = common.HexToAddress("0xa1")
	bob     = common.HexToAddress("0xb0")
	custody = common.HexToAddress("0xc0")
)

func TestVaultMove(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("eth")
	v.Mint(alice, big.NewInt(100))

	require.NoError(t, v.Move(ctx, alice, bob, big.NewInt(40)))
	assert.Equal(t, "60", v.BalanceOf(alice).String())
	assert.Equal(t, "40", v.BalanceOf(bob).String())

	err := v.Move(ctx, bob, alice, big.NewInt(41))
	require.ErrorIs(t, err, asset.ErrInsufficientBalance)
	require.ErrorIs(t, v.Move(ctx, bob, alice, big.NewInt(-1)), asset.ErrNegativeAmount)
	require.NoError(t, v.Move(ctx, bob, alice, big.NewInt(0)))

	assert.Equal(t, "100", v.Total().String())
}

func TestVaultReceiverRejects(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("eth")
	v.Mint(alice, big.NewInt(10))

	v.SetReceiver(bob, func(context.Context, common.Address, *big.Int) error {
		return errors.New("no thanks")
	})

	err := v.Move(ctx, alice, bob, big.NewInt(5))
	require.ErrorIs(t, err, asset.ErrTransferFailed)
	assert.Equal(t, "10", v.BalanceOf(alice).String())
	assert.Equal(t, "0", v.BalanceOf(bob).String())

	v.SetReceiver(bob, nil)
	require.NoError(t, v.Move(ctx, alice, bob, big.NewInt(5)))
}

func TestVaultReceiverMayReenter(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("eth")
	v.Mint(alice, big.NewInt(10))

	var seen *big.Int
	v.SetReceiver(bob, func(ctx context.Context, _ common.Address, amount *big.Int) error {
		seen = v.BalanceOf(alice)
		return v.Move(ctx, alice, custody, big.NewInt(1))
	})

	require.NoError(t, v.Move(ctx, alice, bob, big.NewInt(4)))
	assert.Equal(t, "10", seen.String())
	assert.Equal(t, "5", v.BalanceOf(alice).String())
	assert.Equal(t, "1", v.BalanceOf(custody).String())
}

func TestTransfers(t *testing.T) {
	ctx := context.Background()
	v := asset.NewVault("token")
	v.Mint(alice, big.NewInt(50))

	tr := asset.NewToken(v, custody)
	assert.Equal(t, asset.KindToken, tr.Kind())
	require.NoError(t, tr.Pull(ctx, alice, big.NewInt(30)))
	require.NoError(t, tr.Push(ctx, bob, big.NewInt(20)))
	assert.Equal(t, "10", v.BalanceOf(custody).String())
	assert.Equal(t, "20", v.BalanceOf(bob).String())

	err := tr.Push(ctx, bob, big.NewInt(11))
	require.ErrorIs(t, err, asset.ErrInsufficientBalance)

	assert.Equal(t, asset.KindNative, asset.NewNative(v, custody).Kind())

	manual := asset.NewManual()
	assert.Equal(t, asset.KindManual, manual.Kind())
	require.NoError(t, manual.Pull(ctx, bob, big.NewInt(1000)))
	require.NoError(t, manual.Push(ctx, bob, big.NewInt(1000)))
	assert.Equal(t, "50", v.Total().String())
}
