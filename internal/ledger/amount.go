package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
)

// Int256Length is the width of a packed signed amount.
const Int256Length = 32

var (
	// maxMagnitude is 2^255; every stored amount must stay strictly below it.
	maxMagnitude = new(big.Int).Lsh(big.NewInt(1), 255)
	twoTo256     = new(big.Int).Lsh(big.NewInt(1), 256)
)

// InRange reports whether |v| < 2^255. A nil amount counts as zero.
func InRange(v *big.Int) bool {
	if v == nil {
		return true
	}
	return v.CmpAbs(maxMagnitude) < 0
}

// CheckAmount returns ErrAmountOverflow when v is out of range.
func CheckAmount(v *big.Int) error {
	if !InRange(v) {
		return ErrAmountOverflow
	}
	return nil
}

// addChecked returns a+delta, or ErrAmountOverflow when either the delta or
// the result leaves the int256 range.
func addChecked(a, delta *big.Int) (*big.Int, error) {
	if err := CheckAmount(delta); err != nil {
		return nil, err
	}
	sum := new(big.Int).Add(zeroIfNil(a), zeroIfNil(delta))
	if err := CheckAmount(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// PackInt256 encodes v as 32 bytes of big-endian two's complement.
func PackInt256(v *big.Int) ([]byte, error) {
	if err := CheckAmount(v); err != nil {
		return nil, err
	}
	return math.U256Bytes(new(big.Int).Set(zeroIfNil(v))), nil
}

// UnpackInt256 decodes a 32-byte two's-complement value.
func UnpackInt256(b []byte) (*big.Int, error) {
	if len(b) != Int256Length {
		return nil, ErrPackedRequest
	}
	v := new(big.Int).SetBytes(b)
	if v.Bit(255) == 1 {
		v.Sub(v, twoTo256)
	}
	if err := CheckAmount(v); err != nil {
		return nil, err
	}
	return v, nil
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func cloneInt(v *big.Int) *big.Int {
	return new(big.Int).Set(zeroIfNil(v))
}
