package auth_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github/chapool/go-ledger/internal/auth"
	"github/chapool/go-ledger/internal/ledger"
)

func TestRoleOf(t *testing.T) {
	payee := common.HexToAddress("0x01")
	payer := common.HexToAddress("0x02")
	sub := common.HexToAddress("0x03")

	r := &ledger.Request{
		Payee:          payee,
		Payer:          payer,
		ExpectedAmount: big.NewInt(1),
		Balance:        new(big.Int),
		SubPayees: []ledger.SubPayee{
			{Address: sub, ExpectedAmount: big.NewInt(1), Balance: new(big.Int)},
		},
	}

	tests := []struct {
		caller common.Address
		role   auth.Role
	}{
		{payer, auth.RolePayer},
		{payee, auth.RolePayee},
		{sub, auth.RoleSubPayee},
		{common.HexToAddress("0x04"), auth.RoleNone},
		{common.Address{}, auth.RoleNone},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.role, auth.RoleOf(r, tt.caller))
		})
	}
}

func TestRoleOfPrefersPayer(t *testing.T) {
	both := common.HexToAddress("0x05")
	r := &ledger.Request{
		Payee:     common.HexToAddress("0x01"),
		Payer:     both,
		SubPayees: []ledger.SubPayee{{Address: both}},
	}
	assert.Equal(t, auth.RolePayer, auth.RoleOf(r, both))
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, auth.RolePayer.IsPayer())
	assert.True(t, auth.RolePayer.IsParty())
	assert.True(t, auth.RolePayee.IsPayee())
	assert.True(t, auth.RolePayee.IsParty())
	assert.False(t, auth.RoleSubPayee.IsParty())
	assert.False(t, auth.RoleNone.IsPayee())
}
