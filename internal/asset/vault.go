package asset

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Vault keeps per-account balances of one asset in memory. Accounts may
// register a Receiver that is consulted before value is credited to them.
type Vault struct {
	mu        sync.Mutex
	name      string
	balances  map[common.Address]*big.Int
	receivers map[common.Address]Receiver
}

func NewVault(name string) *Vault {
	return &Vault{
		name:      name,
		balances:  make(map[common.Address]*big.Int),
		receivers: make(map[common.Address]Receiver),
	}
}

func (v *Vault) Name() string {
	return v.name
}

// Mint credits amount to an account out of thin air.
func (v *Vault) Mint(to common.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(to, amount)
}

func (v *Vault) BalanceOf(account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Total is the sum of every balance held in the vault.
func (v *Vault) Total() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	total := new(big.Int)
	for _, b := range v.balances {
		total.Add(total, b)
	}
	return total
}

// SetReceiver installs a hook for incoming transfers to account. A nil
// receiver removes the hook.
func (v *Vault) SetReceiver(account common.Address, r Receiver) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if r == nil {
		delete(v.receivers, account)
		return
	}
	v.receivers[account] = r
}

// Move transfers amount between two accounts. The receiver of to runs first
// without any lock held, so it may call back into anything; if it refuses,
// nothing moves.
func (v *Vault) Move(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	v.mu.Lock()
	r := v.receivers[to]
	v.mu.Unlock()

	if r != nil {
		if err := r(ctx, from, new(big.Int).Set(amount)); err != nil {
			log.Debug().Err(err).Str("vault", v.name).Str("to", to.Hex()).Str("amount", amount.String()).Msg("Transfer rejected by receiver")
			return errors.Wrapf(ErrTransferFailed, "receiver %s rejected transfer: %v", to.Hex(), err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.balanceLocked(from).Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "account %s holds %s, needs %s", from.Hex(), v.balanceLocked(from), amount)
	}
	v.balances[from] = new(big.Int).Sub(v.balances[from], amount)
	v.credit(to, amount)

	return nil
}

func (v *Vault) balanceLocked(account common.Address) *big.Int {
	if b, ok := v.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (v *Vault) credit(to common.Address, amount *big.Int) {
	v.balances[to] = new(big.Int).Add(v.balanceLocked(to), amount)
}
