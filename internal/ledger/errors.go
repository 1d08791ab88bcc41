package ledger

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies why an action was rejected.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindState         ErrorKind = "state"
	KindOverflow      ErrorKind = "overflow"
	KindFeeMismatch   ErrorKind = "fee_mismatch"
	KindNotFound      ErrorKind = "not_found"
)

// Error is a rejected action. Reason is stable and safe to compare.
type Error struct {
	Kind   ErrorKind
	Reason string
}

// NewError creates a new ledger error of the given kind
func NewError(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Reason
}

// Is matches another *Error with the same kind and reason. A target without
// a reason matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error) //nolint:errorlint // Is receives unwrapped targets
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Kind-only targets, usable with errors.Is.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrState         = &Error{Kind: KindState}
	ErrOverflow      = &Error{Kind: KindOverflow}
	ErrFeeMismatch   = &Error{Kind: KindFeeMismatch}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

var (
	ErrNotAdmin            = NewError(KindAuthorization, "caller is not the admin")
	ErrNotTrustedModule    = NewError(KindAuthorization, "caller is not a trusted settlement module")
	ErrNotOwner            = NewError(KindAuthorization, "caller is not the owning settlement module")
	ErrUntrustedExtension  = NewError(KindAuthorization, "extension is not trusted")
	ErrStorePaused         = NewError(KindState, "store is paused")
	ErrNotCreated          = NewError(KindState, "request is not in created state")
	ErrAlreadyCanceled     = NewError(KindState, "request is canceled")
	ErrExtensionAlreadySet = NewError(KindState, "extension already set")
	ErrPayeeAlreadySet     = NewError(KindState, "payee already set")
	ErrPayerAlreadySet     = NewError(KindState, "payer already set")
	ErrMissingCreator      = NewError(KindValidation, "creator is missing")
	ErrMissingAddress      = NewError(KindValidation, "address is missing")
	ErrMissingSubPayee     = NewError(KindValidation, "sub-payee address is missing")
	ErrMissingAmount       = NewError(KindValidation, "amount is missing")
	ErrPayeeIndex          = NewError(KindValidation, "payee index out of range")
	ErrPackedRequest       = NewError(KindValidation, "malformed packed request")
	ErrAmountOverflow      = NewError(KindOverflow, "amount magnitude must be below 2^255")
	ErrRequestNotFound     = NewError(KindNotFound, "request does not exist")
)

// KindOf returns the kind of a ledger error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
