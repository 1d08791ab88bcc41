package signing

import (
	"context"

	"github.com/dropbox/godropbox/time2"
	"github.com/ethereum/go-ethereum/common"

	"github/chapool/go-ledger/internal/util"
)

// Verifier checks signed payloads before a module instantiates them. It keeps
// no state between calls; expiry is read from the clock every time.
type Verifier struct {
	clock time2.Clock
}

func NewVerifier(clock time2.Clock) *Verifier {
	if clock == nil {
		clock = time2.DefaultClock
	}
	return &Verifier{clock: clock}
}

// Verify judges p as presented to module. The digest is recomputed with
// module's own identity, so a payload signed for another module never
// matches. The returned error is one of ErrDigestMismatch, ErrInvalidSignature,
// ErrWrongSigner or ErrExpired when the payload is rejected.
func (v *Verifier) Verify(ctx context.Context, module common.Address, p *Payload) (*Verification, error) {
	log := util.LogFromContext(ctx).With().Str("component", "signing").Str("module", module.Hex()).Logger()

	res := &Verification{Status: StatusUnverified}
	reject := func(err error) (*Verification, error) {
		res.Status = StatusRejected
		res.Err = err
		log.Debug().Err(err).Str("digest", res.Digest.Hex()).Msg("Rejected signed request")
		return res, err
	}

	digest, err := Digest(module, p)
	if err != nil {
		return reject(err)
	}
	res.Digest = digest

	if p.Hash != digest {
		return reject(ErrDigestMismatch)
	}

	signer, err := Recover(digest, p.Signature)
	if err != nil {
		return reject(err)
	}
	res.Signer = signer

	if signer != p.Payees[0] {
		return reject(ErrWrongSigner)
	}

	if now := v.clock.Now().Unix(); now < 0 || uint64(now) >= p.Expiration {
		return reject(ErrExpired)
	}

	res.Status = StatusValid
	return res, nil
}
