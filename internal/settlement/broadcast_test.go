package settlement_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/settlement"
	"github/chapool/go-ledger/internal/signing"
	"github/chapool/go-ledger/internal/test"
)

func signedRequest(t *testing.T, e *test.Env, refs ...common.Address) *signing.Payload {
	t.Helper()

	p := &signing.Payload{
		Module:            test.ModuleAddress,
		Payees:            []common.Address{e.Payee.Address, e.Sub1.Address},
		ExpectedAmounts:   test.Amounts(1000, 200),
		PaymentReferences: refs,
		Data:              "QmSigned",
		Expiration:        uint64(e.Clock.Now().Add(time.Hour).Unix()),
	}
	require.NoError(t, signing.Sign(p, e.Payee.PrivateKey))
	return p
}

func TestBroadcastSignedRequest(t *testing.T) {
	ctx := context.Background()
	e := test.NewEnv(t, asset.KindNative)
	e.SetFees(t, 1, 100, nil)
	ref := e.Others[0]

	p := signedRequest(t, e, ref.Address)
	receipt, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payer, 12+500), p, settlement.BroadcastOptions{
		Payments: test.Amounts(500),
		Tips:     test.Amounts(0, 10),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Created", "NewSubPayee", "Accepted", "UpdateExpectedAmount", "UpdateBalance",
	}, ledger.EventNames(receipt.Events))
	assert.Equal(t, "12", receipt.Fee.String())

	r := load(t, e, receipt.RequestID)
	assert.Equal(t, e.Payee.Address, r.Creator)
	assert.Equal(t, e.Payer.Address, r.Payer)
	assert.Equal(t, ledger.StateAccepted, r.State)
	assert.Equal(t, "QmSigned", r.Data)
	assert.Equal(t, []string{"1000", "210"}, test.Strings(r.ExpectedAmounts()))
	assert.Equal(t, []string{"500", "0"}, test.Strings(r.Balances()))

	// the payment went to the signed reference, not the payee
	assert.Equal(t, new(big.Int).Add(test.InitialFunds, big.NewInt(500)).String(), e.Native.BalanceOf(ref.Address).String())
	assert.Equal(t, test.InitialFunds.String(), e.Native.BalanceOf(e.Payee.Address).String())
	assert.Equal(t, ref.Address, e.Module.PaymentReference(r.ID, 0))
	assert.Equal(t, "12", e.Native.BalanceOf(e.Sink.Address).String())
}

func TestBroadcastSignedRequestRejections(t *testing.T) {
	ctx := context.Background()
	e := test.NewEnv(t, asset.KindNative)

	t.Run("tampered", func(t *testing.T) {
		p := signedRequest(t, e)
		p.ExpectedAmounts[0] = big.NewInt(1)
		_, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payer, 0), p, settlement.BroadcastOptions{})
		require.ErrorIs(t, err, signing.ErrDigestMismatch)
	})

	t.Run("signed by a sub-payee", func(t *testing.T) {
		p := signedRequest(t, e)
		require.NoError(t, signing.Sign(p, e.Sub1.PrivateKey))
		_, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payer, 0), p, settlement.BroadcastOptions{})
		require.ErrorIs(t, err, signing.ErrWrongSigner)
	})

	t.Run("signed for another module", func(t *testing.T) {
		p := signedRequest(t, e)
		p.Module = test.StoreAddress
		require.NoError(t, signing.Sign(p, e.Payee.PrivateKey))
		_, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payer, 0), p, settlement.BroadcastOptions{})
		require.ErrorIs(t, err, signing.ErrDigestMismatch)
	})

	t.Run("bound to another payer", func(t *testing.T) {
		p := signedRequest(t, e)
		p.Payer = e.Others[1].Address
		require.NoError(t, signing.Sign(p, e.Payee.PrivateKey))
		_, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payer, 0), p, settlement.BroadcastOptions{})
		require.ErrorIs(t, err, settlement.ErrCallerNotPayer)
	})

	t.Run("broadcast by the payee", func(t *testing.T) {
		p := signedRequest(t, e)
		_, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payee, 0), p, settlement.BroadcastOptions{})
		require.ErrorIs(t, err, settlement.ErrPayerIsPayee)
	})

	t.Run("expired", func(t *testing.T) {
		p := signedRequest(t, e)
		e.Clock.Advance(2 * time.Hour)
		_, err := e.Module.BroadcastSignedRequestAsPayer(ctx, test.Call(e.Payer, 0), p, settlement.BroadcastOptions{})
		require.ErrorIs(t, err, signing.ErrExpired)
	})

	assert.Equal(t, uint64(0), e.Store.NumRequests())
}
