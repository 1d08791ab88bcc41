package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// RequestID identifies a request: the store address in the high 20 bytes and
// the store-local sequence number in the low 12.
type RequestID [32]byte

// NewRequestID builds the id of the index-th request of a store.
func NewRequestID(store common.Address, index uint64) RequestID {
	var id RequestID
	copy(id[:common.AddressLength], store.Bytes())
	binary.BigEndian.PutUint64(id[24:], index)
	return id
}

// Store returns the address of the store that allocated the id.
func (id RequestID) Store() common.Address {
	return common.BytesToAddress(id[:common.AddressLength])
}

// Index returns the sequence number of the id within its store.
func (id RequestID) Index() uint64 {
	return binary.BigEndian.Uint64(id[24:])
}

func (id RequestID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id RequestID) String() string {
	return id.Hex()
}

func (id RequestID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *RequestID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(trim0x(string(text)))
	if err != nil {
		return errors.Wrap(err, "failed to decode request id")
	}
	if len(b) != len(id) {
		return errors.Errorf("invalid request id length %d", len(b))
	}
	copy(id[:], b)
	return nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// State is the lifecycle state of a request.
type State uint8

const (
	StateCreated State = iota
	StateAccepted
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAccepted:
		return "accepted"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Payee is a beneficiary slot and its expected amount, as passed to CreateRequest.
type Payee struct {
	Address        common.Address
	ExpectedAmount *big.Int
}

// SubPayee is a secondary beneficiary of a request.
type SubPayee struct {
	Address        common.Address
	ExpectedAmount *big.Int
	Balance        *big.Int
}

// Request is a snapshot of a ledger record. Values returned by the store are
// copies; mutating them has no effect on the ledger.
type Request struct {
	ID             RequestID
	Creator        common.Address
	Payee          common.Address
	Payer          common.Address
	Module         common.Address
	ExpectedAmount *big.Int
	Balance        *big.Int
	State          State
	Extension      common.Address
	Data           string
	SubPayees      []SubPayee
}

// PayeeCount is 1 plus the number of sub-payees.
func (r *Request) PayeeCount() int {
	return 1 + len(r.SubPayees)
}

// PayeeAt returns the address of the payee at a positional index, where
// index 0 is the primary payee.
func (r *Request) PayeeAt(index int) (common.Address, bool) {
	if index == 0 {
		return r.Payee, true
	}
	if index < 0 || index > len(r.SubPayees) {
		return common.Address{}, false
	}
	return r.SubPayees[index-1].Address, true
}

// ExpectedAt returns the expected amount at a positional index.
func (r *Request) ExpectedAt(index int) *big.Int {
	if index == 0 {
		return cloneInt(r.ExpectedAmount)
	}
	return cloneInt(r.SubPayees[index-1].ExpectedAmount)
}

// BalanceAt returns the balance at a positional index.
func (r *Request) BalanceAt(index int) *big.Int {
	if index == 0 {
		return cloneInt(r.Balance)
	}
	return cloneInt(r.SubPayees[index-1].Balance)
}

// ExpectedAmounts lists every expected amount, primary payee first.
func (r *Request) ExpectedAmounts() []*big.Int {
	out := make([]*big.Int, r.PayeeCount())
	for i := range out {
		out[i] = r.ExpectedAt(i)
	}
	return out
}

// Balances lists every balance, primary payee first.
func (r *Request) Balances() []*big.Int {
	out := make([]*big.Int, r.PayeeCount())
	for i := range out {
		out[i] = r.BalanceAt(i)
	}
	return out
}

func (r *Request) clone() *Request {
	c := *r
	c.ExpectedAmount = cloneInt(r.ExpectedAmount)
	c.Balance = cloneInt(r.Balance)
	c.SubPayees = make([]SubPayee, len(r.SubPayees))
	for i, sp := range r.SubPayees {
		c.SubPayees[i] = SubPayee{
			Address:        sp.Address,
			ExpectedAmount: cloneInt(sp.ExpectedAmount),
			Balance:        cloneInt(sp.Balance),
		}
	}
	return &c
}

// CreateParams describes a new request.
type CreateParams struct {
	Creator   common.Address
	Payees    []Payee
	Payer     common.Address
	Extension common.Address
	Data      string
}
