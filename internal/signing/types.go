package signing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/ledger"
)

// SignatureLength is the size of an [R || S || V] secp256k1 signature.
const SignatureLength = 65

var (
	ErrDigestMismatch   = ledger.NewError(ledger.KindValidation, "signed hash does not match payload")
	ErrInvalidSignature = ledger.NewError(ledger.KindValidation, "signature is malformed")
	ErrWrongSigner      = ledger.NewError(ledger.KindAuthorization, "signer is not the primary payee")
	ErrExpired          = ledger.NewError(ledger.KindState, "signed request has expired")
	ErrEmptyPayees      = ledger.NewError(ledger.KindValidation, "signed request has no payees")
)

// Payload is a request pre-agreed and signed off-chain by its primary payee.
type Payload struct {
	Module            common.Address
	Payees            []common.Address
	ExpectedAmounts   []*big.Int
	PaymentReferences []common.Address
	Payer             common.Address
	Data              string
	// Expiration is a unix timestamp in seconds.
	Expiration uint64
	// Hash is the digest the signer claims to have signed.
	Hash      common.Hash
	Signature []byte
}

// Status is the outcome of verifying a payload.
type Status int

const (
	StatusUnverified Status = iota
	StatusValid
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusUnverified:
		return "unverified"
	case StatusValid:
		return "valid"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Verification records how a payload was judged.
type Verification struct {
	Status Status
	Digest common.Hash
	Signer common.Address
	Err    error
}
