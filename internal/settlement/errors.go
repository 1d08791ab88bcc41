package settlement

import "github/chapool/go-ledger/internal/ledger"

var (
	ErrModulePaused      = ledger.NewError(ledger.KindState, "module is paused")
	ErrRequestCanceled   = ledger.NewError(ledger.KindState, "request is canceled")
	ErrBalanceNotZero    = ledger.NewError(ledger.KindState, "balances must be zero to cancel")
	ErrEmptyPayees       = ledger.NewError(ledger.KindValidation, "at least one payee is required")
	ErrLengthMismatch    = ledger.NewError(ledger.KindValidation, "payees and expected amounts differ in length")
	ErrTooManyReferences = ledger.NewError(ledger.KindValidation, "more payment references than payees")
	ErrTooManyAmounts    = ledger.NewError(ledger.KindValidation, "more amounts than payees")
	ErrInvalidAddress    = ledger.NewError(ledger.KindValidation, "address must not be empty")
	ErrPayerIsPayee      = ledger.NewError(ledger.KindValidation, "payer cannot be the main payee")
	ErrNegativeAmount    = ledger.NewError(ledger.KindValidation, "amounts must not be negative")
	ErrSubtractTooLarge  = ledger.NewError(ledger.KindValidation, "subtract exceeds expected amount")
	ErrValueMismatch     = ledger.NewError(ledger.KindValidation, "attached value does not match the amount due")
	ErrInsufficientFunds = ledger.NewError(ledger.KindValidation, "caller cannot fund the attached value")
	ErrCallerNotPayer    = ledger.NewError(ledger.KindAuthorization, "caller is not the payer")
	ErrCallerNotPayee    = ledger.NewError(ledger.KindAuthorization, "caller is not the payee")
	ErrCallerNotParty    = ledger.NewError(ledger.KindAuthorization, "caller is neither payer nor payee")
	ErrTipsPayerOnly     = ledger.NewError(ledger.KindAuthorization, "only the payer can add tips")
	ErrFeeMismatch       = ledger.NewError(ledger.KindFeeMismatch, "attached value does not match the fee")
)
