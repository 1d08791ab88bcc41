package fees

import "github/chapool/go-ledger/internal/ledger"

var (
	ErrNegativeRate = ledger.NewError(ledger.KindValidation, "fee rate must not be negative")
	ErrNegativeCap  = ledger.NewError(ledger.KindValidation, "max fees must not be negative")
)
