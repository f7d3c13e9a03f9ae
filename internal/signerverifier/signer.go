package signerverifier

import (
	"context"

	"github.com/jku/repository-playground/internal/tufmeta"
)

// Signer wraps a SignerBackend to produce a tufmeta.Signature directly,
// sparing callers from hex-encoding and KeyID bookkeeping.
type Signer struct {
	Backend SignerBackend
}

// SignRole signs the role's canonical bytes and returns the resulting
// signature.
func (s Signer) SignRole(ctx context.Context, role *tufmeta.SignedRole) (tufmeta.Signature, error) {
	key, err := s.Backend.PublicKey(ctx)
	if err != nil {
		return tufmeta.Signature{}, err
	}

	canonical, err := role.CanonicalBytes()
	if err != nil {
		return tufmeta.Signature{}, err
	}

	sigHex, err := s.Backend.Sign(ctx, canonical)
	if err != nil {
		return tufmeta.Signature{}, err
	}

	return tufmeta.Signature{KeyID: key.KeyID, Sig: sigHex}, nil
}
