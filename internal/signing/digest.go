package signing

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github/chapool/go-ledger/internal/ledger"
)

const (
	wordLength    = 32
	recoveryIDMin = 27
)

var ErrAmountsMismatch = ledger.NewError(ledger.KindValidation, "payees and expected amounts differ in length")

// Digest computes the hash a payee signs for module:
//
//	keccak256(module | packed request | payment references (32 bytes each) | expiration (uint256))
//
// where the packed request uses the primary payee as creator.
func Digest(module common.Address, p *Payload) (common.Hash, error) {
	if len(p.Payees) == 0 {
		return common.Hash{}, ErrEmptyPayees
	}
	if len(p.Payees) != len(p.ExpectedAmounts) {
		return common.Hash{}, ErrAmountsMismatch
	}

	params := ledger.CreateParams{
		Creator: p.Payees[0],
		Payer:   p.Payer,
		Data:    p.Data,
		Payees:  make([]ledger.Payee, len(p.Payees)),
	}
	for i, addr := range p.Payees {
		params.Payees[i] = ledger.Payee{Address: addr, ExpectedAmount: p.ExpectedAmounts[i]}
	}

	packed, err := ledger.EncodePacked(params)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to pack signed request")
	}

	chunks := make([][]byte, 0, 3+len(p.PaymentReferences))
	chunks = append(chunks, module.Bytes(), packed)
	for _, ref := range p.PaymentReferences {
		chunks = append(chunks, common.LeftPadBytes(ref.Bytes(), wordLength))
	}
	chunks = append(chunks, math.U256Bytes(new(big.Int).SetUint64(p.Expiration)))

	return crypto.Keccak256Hash(chunks...), nil
}

// Sign fills in Hash and Signature of p using the raw secp256k1 private key.
// The digest is signed under the Ethereum signed-message prefix with V in {27, 28}.
func Sign(p *Payload, privateKey []byte) error {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return errors.Wrap(err, "failed to convert private key to ECDSA")
	}
	return SignWithKey(p, key)
}

// SignWithKey is Sign for an already parsed key.
func SignWithKey(p *Payload, key *ecdsa.PrivateKey) error {
	digest, err := Digest(p.Module, p)
	if err != nil {
		return err
	}

	sig, err := crypto.Sign(accounts.TextHash(digest.Bytes()), key)
	if err != nil {
		return errors.Wrap(err, "failed to sign digest")
	}
	sig[crypto.RecoveryIDOffset] += recoveryIDMin

	p.Hash = digest
	p.Signature = sig
	return nil
}

// Recover returns the address that signed digest. V may be 0/1 or 27/28.
func Recover(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= recoveryIDMin {
		sig[crypto.RecoveryIDOffset] -= recoveryIDMin
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, ErrInvalidSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash(digest.Bytes()), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}
