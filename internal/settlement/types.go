package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/asset"
	"github/chapool/go-ledger/internal/fees"
	"github/chapool/go-ledger/internal/ledger"
	"github/chapool/go-ledger/internal/metrics"
	"github/chapool/go-ledger/internal/signing"
)

// Call carries the authenticated caller of an action and the native value
// attached to it. A nil Value means nothing is attached.
type Call struct {
	From  common.Address
	Value *big.Int
}

// Receipt is the result of a committed action: the ledger events followed by
// any settlement notices produced while moving value.
type Receipt struct {
	RequestID ledger.RequestID
	Events    []ledger.Event
	// Fee charged by the action, possibly zero.
	Fee *big.Int
}

// CreateParams are the inputs of CreateAsPayee.
type CreateParams struct {
	Payees          []common.Address
	ExpectedAmounts []*big.Int
	// PaymentReferences optionally redirect payouts per payee. Shorter than
	// Payees or zero entries mean "pay the payee address".
	PaymentReferences []common.Address
	Payer             common.Address
	PayerRefund       common.Address
	Data              string
	Extension         common.Address
}

// PayerCreateParams are the inputs of CreateAsPayer.
type PayerCreateParams struct {
	Payees          []common.Address
	ExpectedAmounts []*big.Int
	PayerRefund     common.Address
	// Payments are paid immediately, Tips raise expected amounts first.
	Payments  []*big.Int
	Tips      []*big.Int
	Data      string
	Extension common.Address
}

// BroadcastOptions are the payer-side inputs of BroadcastSignedRequestAsPayer.
type BroadcastOptions struct {
	PayerRefund common.Address
	Payments    []*big.Int
	Tips        []*big.Int
}

// Config wires a module to its collaborators.
type Config struct {
	Address common.Address
	Admin   common.Address

	Store     *ledger.Store
	Collector *fees.Collector
	Verifier  *signing.Verifier

	// Transfer moves payments. Native carries attached value and fees; it
	// defaults to Transfer when Transfer is itself native.
	Transfer asset.Transfer
	Native   asset.Transfer

	Metrics *metrics.Metrics
}
