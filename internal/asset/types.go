package asset

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Kind selects how a settlement module moves value.
type Kind string

const (
	// KindNative pushes value that arrived attached to the call.
	KindNative Kind = "native"
	// KindToken pulls value from the caller, then pushes it on.
	KindToken Kind = "token"
	// KindManual records payments without moving any value.
	KindManual Kind = "manual"
)

var (
	ErrTransferFailed      = errors.New("transfer failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("negative transfer amount")
)

// Pusher sends value to a recipient. A returned error means nothing moved.
type Pusher interface {
	Push(ctx context.Context, to common.Address, amount *big.Int) error
}

// Transfer is the per-asset value capability of a settlement module.
type Transfer interface {
	Pusher
	Kind() Kind
	// Pull takes amount from an account into module custody. Implementations
	// must not call back into the ledger.
	Pull(ctx context.Context, from common.Address, amount *big.Int) error
}

// Receiver is invoked after value lands in an account. Returning an error
// rejects the incoming transfer.
type Receiver func(ctx context.Context, from common.Address, amount *big.Int) error
