package test

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/pbkdf2"
)

// Mnemonic seeds every fixture account. It must never hold real funds.
const Mnemonic = "test test test test test test test test test test test junk"

const (
	pbkdf2Iterations = 2048
	pbkdf2KeyLength  = 64
	hardenedOffset   = 0x80000000
	accountPath      = "m/44'/60'/0'/0/"
)

// Account is a deterministic secp256k1 identity.
type Account struct {
	Address    common.Address
	Key        *ecdsa.PrivateKey
	PrivateKey []byte
}

var (
	accountsMu sync.Mutex
	accounts   = map[uint32]Account{}
	seedOnce   sync.Once
	seed       []byte
)

// NewAccount returns the index-th account derived from Mnemonic along the
// standard Ethereum path.
func NewAccount(t *testing.T, index uint32) Account {
	t.Helper()

	accountsMu.Lock()
	defer accountsMu.Unlock()

	if acc, ok := accounts[index]; ok {
		return acc
	}

	acc, err := DeriveAccount(mnemonicSeed(), accountPath+strconv.FormatUint(uint64(index), 10))
	if err != nil {
		t.Fatalf("failed to derive account %d: %v", index, err)
	}
	accounts[index] = acc
	return acc
}

// DeriveAccount derives the account at a BIP44 path such as m/44'/60'/0'/0/0.
func DeriveAccount(seed []byte, path string) (Account, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return Account{}, errors.Wrap(err, "failed to create master key")
	}

	indices, err := parsePath(path)
	if err != nil {
		return Account{}, err
	}
	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return Account{}, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	ecdsaKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return Account{}, errors.Wrap(err, "failed to convert to ECDSA private key")
	}

	return Account{
		Address:    crypto.PubkeyToAddress(ecdsaKey.PublicKey),
		Key:        ecdsaKey,
		PrivateKey: crypto.FromECDSA(ecdsaKey),
	}, nil
}

func mnemonicSeed() []byte {
	seedOnce.Do(func() {
		seed = pbkdf2.Key([]byte(Mnemonic), []byte("mnemonic"), pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	})
	return seed
}

func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, errors.Errorf("invalid BIP44 path: %s", path)
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'")
		n, err := strconv.ParseUint(strings.TrimSuffix(part, "'"), 10, 31)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path segment %q", part)
		}
		index := uint32(n)
		if hardened {
			index += hardenedOffset
		}
		indices = append(indices, index)
	}

	return indices, nil
}
