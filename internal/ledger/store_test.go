package ledger_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger/internal/ledger"
)

var (
	storeAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	admin     = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	module    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	other     = common.HexToAddress("0x0000000000000000000000000000000000000002")
	creator   = common.HexToAddress("0x0000000000000000000000000000000000000010")
	payee     = common.HexToAddress("0x0000000000000000000000000000000000000011")
	payer     = common.HexToAddress("0x0000000000000000000000000000000000000012")
	sub1      = common.HexToAddress("0x0000000000000000000000000000000000000013")
	sub2      = common.HexToAddress("0x0000000000000000000000000000000000000014")
	extension = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func maxInt256() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
}

func amounts(xs []*big.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}

func newStore(t *testing.T) *ledger.Store {
	t.Helper()

	s := ledger.NewStore(storeAddr, admin)
	require.NoError(t, s.AddTrustedModule(context.Background(), admin, module))
	require.NoError(t, s.AddTrustedModule(context.Background(), admin, other))
	require.NoError(t, s.AddTrustedExtension(context.Background(), admin, extension))

	return s
}

func params(values ...int64) ledger.CreateParams {
	addrs := []common.Address{payee, sub1, sub2}
	p := ledger.CreateParams{Creator: creator, Payer: payer, Data: "QmHash"}
	for i, a := range values {
		p.Payees = append(p.Payees, ledger.Payee{Address: addrs[i], ExpectedAmount: big.NewInt(a)})
	}
	return p
}

func TestCreateRequestIdsIncrease(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var last uint64
	for i := range 5 {
		id, err := s.CreateRequest(ctx, module, params(int64(i)))
		require.NoError(t, err)
		assert.Greater(t, id.Index(), last)
		assert.Equal(t, storeAddr, id.Store())
		last = id.Index()
	}
	assert.Equal(t, uint64(5), s.NumRequests())

	// a rejected create does not consume an id
	_, err := s.CreateRequest(ctx, module, ledger.CreateParams{Payees: params(1).Payees})
	require.ErrorIs(t, err, ledger.ErrMissingCreator)

	id, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), id.Index())
}

func TestCreateRequestEvents(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	rec := ledger.NewRecorder()
	s.AddSink(rec)

	p := params(100, 20, 3)
	p.Extension = extension
	id, err := s.CreateRequest(ctx, module, p)
	require.NoError(t, err)

	events := rec.Events()
	assert.Equal(t, []string{"Created", "NewSubPayee", "NewSubPayee", "NewExtension"}, ledger.EventNames(events))
	assert.Equal(t, ledger.Created{RequestID: id, Payee: payee, Payer: payer, Creator: creator, Data: "QmHash"}, events[0])
	assert.Equal(t, ledger.NewSubPayee{RequestID: id, Payee: sub1}, events[1])

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateCreated, r.State)
	assert.Equal(t, module, r.Module)
	assert.Equal(t, []string{"100", "20", "3"}, amounts(r.ExpectedAmounts()))
	assert.Equal(t, []string{"0", "0", "0"}, amounts(r.Balances()))

	n, err := s.SubPayeesCount(id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCreateRequestRejections(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateRequest(ctx, payer, params(1))
	require.ErrorIs(t, err, ledger.ErrNotTrustedModule)

	p := params(1, 2)
	p.Payees[1].Address = common.Address{}
	_, err = s.CreateRequest(ctx, module, p)
	require.ErrorIs(t, err, ledger.ErrMissingSubPayee)

	p = params(1)
	p.Extension = common.HexToAddress("0xbad")
	_, err = s.CreateRequest(ctx, module, p)
	require.ErrorIs(t, err, ledger.ErrUntrustedExtension)

	p = params(1)
	p.Payees[0].ExpectedAmount = new(big.Int).Lsh(big.NewInt(1), 255)
	_, err = s.CreateRequest(ctx, module, p)
	require.ErrorIs(t, err, ledger.ErrAmountOverflow)
	assert.Equal(t, ledger.KindOverflow, ledger.KindOf(err))

	assert.Equal(t, uint64(0), s.NumRequests())
}

func TestUpdateBalanceOverflowIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateRequest(ctx, module, params(0, 0))
	require.NoError(t, err)
	before := len(s.Events())

	require.NoError(t, s.UpdateBalance(ctx, module, id, 1, maxInt256()))

	err = s.UpdateBalance(ctx, module, id, 1, big.NewInt(1))
	require.ErrorIs(t, err, ledger.ErrOverflow)

	neg := new(big.Int).Neg(maxInt256())
	require.NoError(t, s.UpdateExpectedAmount(ctx, module, id, 0, neg))
	err = s.UpdateExpectedAmount(ctx, module, id, 0, big.NewInt(-1))
	require.ErrorIs(t, err, ledger.ErrAmountOverflow)

	// a delta that is itself out of range is rejected even if the sum would fit
	err = s.UpdateExpectedAmount(ctx, module, id, 1, new(big.Int).Lsh(big.NewInt(1), 255))
	require.ErrorIs(t, err, ledger.ErrAmountOverflow)

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, maxInt256().String(), r.BalanceAt(1).String())
	assert.Equal(t, neg.String(), r.ExpectedAt(0).String())
	assert.Len(t, s.Events(), before+2)
}

func TestUpdateRollsBackWholeTransaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateRequest(ctx, module, params(10, 20))
	require.NoError(t, err)
	before := len(s.Events())

	events, err := s.Update(ctx, module, func(tx *ledger.Tx) error {
		if err := tx.UpdateExpectedAmount(id, 0, big.NewInt(5)); err != nil {
			return err
		}
		if err := tx.Accept(id); err != nil {
			return err
		}
		return tx.UpdateBalance(id, 2, big.NewInt(1))
	})
	require.ErrorIs(t, err, ledger.ErrPayeeIndex)
	assert.Nil(t, events)

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateCreated, r.State)
	assert.Equal(t, "10", r.ExpectedAmount.String())
	assert.Len(t, s.Events(), before)
}

func TestUpdateSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	events, err := s.Update(ctx, module, func(tx *ledger.Tx) error {
		id, err := tx.CreateRequest(params(7))
		if err != nil {
			return err
		}
		if err := tx.Accept(id); err != nil {
			return err
		}
		r, err := tx.Request(id)
		if err != nil {
			return err
		}
		assert.Equal(t, ledger.StateAccepted, r.State)
		return tx.UpdateBalance(id, 0, big.NewInt(7))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Created", "Accepted", "UpdateBalance"}, ledger.EventNames(events))
}

func TestAcceptAndCancelTransitions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)

	require.NoError(t, s.Accept(ctx, module, id))
	err = s.Accept(ctx, module, id)
	require.ErrorIs(t, err, ledger.ErrNotCreated)
	assert.Equal(t, ledger.KindState, ledger.KindOf(err))

	require.NoError(t, s.Cancel(ctx, module, id))
	require.ErrorIs(t, s.Cancel(ctx, module, id), ledger.ErrAlreadyCanceled)
	require.ErrorIs(t, s.Accept(ctx, module, id), ledger.ErrState)

	// corrections stay possible after cancel
	require.NoError(t, s.UpdateBalance(ctx, module, id, 0, big.NewInt(-3)))
	require.NoError(t, s.UpdateExpectedAmount(ctx, module, id, 0, big.NewInt(2)))

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateCanceled, r.State)
	assert.Equal(t, "-3", r.Balance.String())

	id2, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)
	require.NoError(t, s.Cancel(ctx, module, id2))
}

func TestOnlyOwnerMutates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)

	require.ErrorIs(t, s.Accept(ctx, other, id), ledger.ErrNotOwner)
	require.ErrorIs(t, s.UpdateBalance(ctx, other, id, 0, big.NewInt(1)), ledger.ErrAuthorization)
	require.ErrorIs(t, s.SetData(ctx, other, id, "x"), ledger.ErrNotOwner)

	// removing trust only closes the creation gate
	require.NoError(t, s.RemoveTrustedModule(ctx, admin, module))
	assert.False(t, s.IsTrustedModule(module))
	require.NoError(t, s.Accept(ctx, module, id))
	_, err = s.CreateRequest(ctx, module, params(1))
	require.ErrorIs(t, err, ledger.ErrNotTrustedModule)

	_, err = s.Request(ledger.NewRequestID(storeAddr, 99))
	require.ErrorIs(t, err, ledger.ErrRequestNotFound)
}

func TestSetPayeePayerExtensionData(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateRequest(ctx, module, ledger.CreateParams{Creator: creator})
	require.NoError(t, err)

	require.NoError(t, s.SetPayee(ctx, module, id, payee))
	require.ErrorIs(t, s.SetPayee(ctx, module, id, sub1), ledger.ErrPayeeAlreadySet)
	require.NoError(t, s.SetPayer(ctx, module, id, payer))
	require.ErrorIs(t, s.SetPayer(ctx, module, id, sub1), ledger.ErrPayerAlreadySet)
	require.ErrorIs(t, s.SetExtension(ctx, module, id, common.HexToAddress("0xbad")), ledger.ErrUntrustedExtension)
	require.NoError(t, s.SetExtension(ctx, module, id, extension))
	require.ErrorIs(t, s.SetExtension(ctx, module, id, extension), ledger.ErrExtensionAlreadySet)
	require.NoError(t, s.SetData(ctx, module, id, "a"))
	require.NoError(t, s.SetData(ctx, module, id, "b"))

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, payee, r.Payee)
	assert.Equal(t, payer, r.Payer)
	assert.Equal(t, extension, r.Extension)
	assert.Equal(t, "b", r.Data)

	events := s.Events()
	assert.Equal(t,
		[]string{"Created", "NewPayee", "NewPayer", "NewExtension", "NewData", "NewData"},
		ledger.EventNames(events[len(events)-6:]),
	)
}

func TestAdminGates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)

	require.ErrorIs(t, s.Pause(ctx, module), ledger.ErrNotAdmin)
	require.ErrorIs(t, s.AddTrustedModule(ctx, module, payer), ledger.ErrNotAdmin)
	require.ErrorIs(t, s.RemoveTrustedExtension(ctx, payer, extension), ledger.ErrNotAdmin)

	require.NoError(t, s.Pause(ctx, admin))
	assert.True(t, s.Paused())
	_, err = s.CreateRequest(ctx, module, params(1))
	require.ErrorIs(t, err, ledger.ErrStorePaused)

	// existing requests keep working while paused
	require.NoError(t, s.Accept(ctx, module, id))
	require.NoError(t, s.UpdateBalance(ctx, module, id, 0, big.NewInt(1)))

	require.NoError(t, s.Unpause(ctx, admin))
	_, err = s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)

	require.NoError(t, s.RemoveTrustedExtension(ctx, admin, extension))
	assert.False(t, s.IsTrustedExtension(extension))
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, []ledger.Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestSinkFailureDoesNotFailCommit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	sink := &failingSink{}
	s.AddSink(sink)

	_, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, uint64(1), s.NumRequests())
}

type sinkFunc func(ctx context.Context, events []ledger.Event) error

func (f sinkFunc) Publish(ctx context.Context, events []ledger.Event) error {
	return f(ctx, events)
}

func TestSinkMayCallBackIntoStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var acceptErr error
	s.AddSink(sinkFunc(func(ctx context.Context, events []ledger.Event) error {
		for _, evt := range events {
			if created, ok := evt.(ledger.Created); ok {
				acceptErr = s.Accept(ctx, module, created.RequestID)
			}
		}
		return nil
	}))
	rec := ledger.NewRecorder()
	s.AddSink(rec)

	id, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)
	require.NoError(t, acceptErr)

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateAccepted, r.State)
	assert.Equal(t, []string{"Created", "Accepted"}, ledger.EventNames(rec.Events()))
}

func TestPanicsDoNotLockTheStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	assert.Panics(t, func() {
		_, _ = s.Update(ctx, module, func(tx *ledger.Tx) error {
			panic("boom")
		})
	})

	panicking := true
	s.AddSink(sinkFunc(func(context.Context, []ledger.Event) error {
		if panicking {
			panicking = false
			panic("sink boom")
		}
		return nil
	}))
	assert.Panics(t, func() {
		_, _ = s.CreateRequest(ctx, module, params(1))
	})

	_, err := s.CreateRequest(ctx, module, params(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s.NumRequests())
}

func TestCreateRequestFromBytes(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	p := params(100, -20, 3)
	packed, err := ledger.EncodePacked(p)
	require.NoError(t, err)
	assert.Len(t, packed, 20+20+1+3*52+1+len(p.Data))

	id, err := s.CreateRequestFromBytes(ctx, module, packed)
	require.NoError(t, err)

	r, err := s.Request(id)
	require.NoError(t, err)
	assert.Equal(t, creator, r.Creator)
	assert.Equal(t, payer, r.Payer)
	assert.Equal(t, payee, r.Payee)
	assert.Equal(t, "QmHash", r.Data)
	assert.Equal(t, []string{"100", "-20", "3"}, amounts(r.ExpectedAmounts()))

	_, err = s.CreateRequestFromBytes(ctx, module, packed[:len(packed)-1])
	require.ErrorIs(t, err, ledger.ErrPackedRequest)
	_, err = s.CreateRequestFromBytes(ctx, module, packed[:30])
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestErrorMatching(t *testing.T) {
	wrapped := errors.Wrap(ledger.ErrNotOwner, "failed to accept")

	assert.ErrorIs(t, wrapped, ledger.ErrNotOwner)
	assert.ErrorIs(t, wrapped, ledger.ErrAuthorization)
	assert.NotErrorIs(t, wrapped, ledger.ErrNotAdmin)
	assert.NotErrorIs(t, wrapped, ledger.ErrState)
	assert.Equal(t, "authorization: caller is not the owning settlement module", ledger.ErrNotOwner.Error())
	assert.Equal(t, ledger.ErrorKind(""), ledger.KindOf(errors.New("plain")))
}

func TestRequestIDText(t *testing.T) {
	id := ledger.NewRequestID(storeAddr, 3)

	text, err := id.MarshalText()
	require.NoError(t, err)

	var back ledger.RequestID
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, id, back)
	assert.Equal(t, uint64(3), back.Index())
	require.Error(t, back.UnmarshalText([]byte("0x1234")))
}
