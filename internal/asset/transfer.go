//nolint:ireturn
package asset

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type custodyTransfer struct {
	kind      Kind
	vault     *Vault
	custodian common.Address
}

// NewNative returns a transfer for value attached to calls. Pulled value is
// held by custodian and pushed from there.
//
//nolint:ireturn // callers only need the capability
func NewNative(vault *Vault, custodian common.Address) Transfer {
	return &custodyTransfer{kind: KindNative, vault: vault, custodian: custodian}
}

// NewToken returns a pull-then-push transfer over a token vault.
//
//nolint:ireturn // callers only need the capability
func NewToken(vault *Vault, custodian common.Address) Transfer {
	return &custodyTransfer{kind: KindToken, vault: vault, custodian: custodian}
}

func (t *custodyTransfer) Kind() Kind {
	return t.kind
}

func (t *custodyTransfer) Pull(ctx context.Context, from common.Address, amount *big.Int) error {
	if err := t.vault.Move(ctx, from, t.custodian, amount); err != nil {
		return errors.Wrapf(err, "failed to pull %s %s from %s", amount, t.vault.Name(), from.Hex())
	}
	return nil
}

func (t *custodyTransfer) Push(ctx context.Context, to common.Address, amount *big.Int) error {
	if err := t.vault.Move(ctx, t.custodian, to, amount); err != nil {
		return errors.Wrapf(err, "failed to push %s %s to %s", amount, t.vault.Name(), to.Hex())
	}
	return nil
}

type manualTransfer struct{}

// NewManual returns a transfer that moves nothing. Payments are settled
// outside the ledger and only recorded.
//
//nolint:ireturn // callers only need the capability
func NewManual() Transfer {
	return manualTransfer{}
}

func (manualTransfer) Kind() Kind { return KindManual }

func (manualTransfer) Pull(context.Context, common.Address, *big.Int) error { return nil }

func (manualTransfer) Push(context.Context, common.Address, *big.Int) error { return nil }
