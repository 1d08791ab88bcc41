package ledger

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Packed request layout:
//
//	creator(20) | payer(20) | count(1) | {payee(20) | amount(32)} * count | dataLen(1) | data
const (
	packedHeaderLength = 2*common.AddressLength + 1
	packedPayeeLength  = common.AddressLength + Int256Length
)

// EncodePacked serializes params into the packed request layout.
func EncodePacked(params CreateParams) ([]byte, error) {
	if len(params.Payees) > math.MaxUint8 {
		return nil, errors.Wrapf(ErrPackedRequest, "too many payees: %d", len(params.Payees))
	}
	if len(params.Data) > math.MaxUint8 {
		return nil, errors.Wrapf(ErrPackedRequest, "data too long: %d bytes", len(params.Data))
	}

	out := make([]byte, 0, packedHeaderLength+len(params.Payees)*packedPayeeLength+1+len(params.Data))
	out = append(out, params.Creator.Bytes()...)
	out = append(out, params.Payer.Bytes()...)
	out = append(out, byte(len(params.Payees)))
	for _, p := range params.Payees {
		amount, err := PackInt256(p.ExpectedAmount)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Address.Bytes()...)
		out = append(out, amount...)
	}
	out = append(out, byte(len(params.Data)))
	out = append(out, params.Data...)

	return out, nil
}

// DecodePacked parses the packed request layout. The extension is always
// empty; packed requests cannot carry one.
func DecodePacked(b []byte) (CreateParams, error) {
	var params CreateParams

	if len(b) < packedHeaderLength {
		return params, errors.Wrap(ErrPackedRequest, "truncated header")
	}
	params.Creator = common.BytesToAddress(b[:common.AddressLength])
	params.Payer = common.BytesToAddress(b[common.AddressLength : 2*common.AddressLength])
	count := int(b[2*common.AddressLength])
	offset := packedHeaderLength

	if len(b) < offset+count*packedPayeeLength+1 {
		return params, errors.Wrap(ErrPackedRequest, "truncated payees")
	}
	params.Payees = make([]Payee, count)
	for i := range count {
		addr := common.BytesToAddress(b[offset : offset+common.AddressLength])
		amount, err := UnpackInt256(b[offset+common.AddressLength : offset+packedPayeeLength])
		if err != nil {
			return params, err
		}
		params.Payees[i] = Payee{Address: addr, ExpectedAmount: amount}
		offset += packedPayeeLength
	}

	dataLen := int(b[offset])
	offset++
	if len(b) != offset+dataLen {
		return params, errors.Wrapf(ErrPackedRequest, "data length %d does not match %d trailing bytes", dataLen, len(b)-offset)
	}
	params.Data = string(b[offset:])

	return params, nil
}
