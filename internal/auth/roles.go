package auth

import (
	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/ledger"
)

// Role is the relation of a caller to a request
type Role string

const (
	// RolePayer is the party the request is addressed to
	RolePayer Role = "payer"
	// RolePayee is the primary payee
	RolePayee Role = "payee"
	// RoleSubPayee is any payee after the first
	RoleSubPayee Role = "sub_payee"
	// RoleNone is everybody else
	RoleNone Role = "none"
)

// RoleOf returns the role of caller on r. A caller holding several positions
// gets the first of payer, payee, sub-payee.
func RoleOf(r *ledger.Request, caller common.Address) Role {
	if caller == (common.Address{}) {
		return RoleNone
	}
	switch caller {
	case r.Payer:
		return RolePayer
	case r.Payee:
		return RolePayee
	}
	for _, sp := range r.SubPayees {
		if sp.Address == caller {
			return RoleSubPayee
		}
	}
	return RoleNone
}

// IsPayer checks if the role is payer
func (r Role) IsPayer() bool {
	return r == RolePayer
}

// IsPayee checks if the role is the primary payee
func (r Role) IsPayee() bool {
	return r == RolePayee
}

// IsParty checks if the role is payer or primary payee
func (r Role) IsParty() bool {
	return r == RolePayer || r == RolePayee
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
