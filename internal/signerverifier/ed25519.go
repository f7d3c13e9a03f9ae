package signerverifier

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/tufmeta"
)

func init() {
	// file:// is the hardware-token-shaped offline backend: the private
	// key material is whatever the PKCS#11 bridge exposes, referenced
	// here by a local path so the registry has something concrete to
	// dispatch on in tests.
	register("file", newPKCS11OfflineBackend)

	// keyless here means "not URI-prefixed": the LOCAL_TESTING_KEY
	// test-only online backend, which bypasses cloud KMS entirely (see
	// spec.md §6 environment variable contract).
	register("keyless", newLocalTestingBackend)
}

// ed25519Backend signs with an in-memory ed25519 key. It backs the
// LOCAL_TESTING_KEY test-only online backend; the PKCS#11-shaped offline
// factory never returns one and always fails with SignerUnavailable.
type ed25519Backend struct {
	key     *tufmeta.Key
	private ed25519.PrivateKey
}

func (b *ed25519Backend) PublicKey(_ context.Context) (*tufmeta.Key, error) {
	return b.key, nil
}

func (b *ed25519Backend) Sign(_ context.Context, data []byte) (string, error) {
	if len(b.private) == 0 {
		return "", fmt.Errorf("%w: no private key material available", errkind.SignerUnavailable)
	}
	sig := ed25519.Sign(b.private, data)
	return hex.EncodeToString(sig), nil
}

func newPKCS11OfflineBackend(_ context.Context, uriOrRef string, cfg BackendConfig) (SignerBackend, error) {
	if cfg.PKCS11LibPath == "" {
		return nil, fmt.Errorf("%w: pykcs11lib not configured for hardware-token signer %q", errkind.SignerUnavailable, uriOrRef)
	}
	// The PKCS#11 bridge itself (loading cfg.PKCS11LibPath, talking to
	// the token over the PKCS#11 C API) is an external collaborator per
	// spec.md §1; this adapter only shapes its output into a
	// SignerBackend once the bridge has produced key material.
	return nil, fmt.Errorf("%w: hardware-token signing requires the PKCS#11 bridge, which is not wired in-process", errkind.SignerUnavailable)
}

func newLocalTestingBackend(_ context.Context, _ string, cfg BackendConfig) (SignerBackend, error) {
	if cfg.LocalTestingKey == "" {
		return nil, fmt.Errorf("%w: LOCAL_TESTING_KEY not set", errkind.SignerUnavailable)
	}
	seed, err := hex.DecodeString(cfg.LocalTestingKey)
	if err != nil {
		return nil, fmt.Errorf("%w: LOCAL_TESTING_KEY is not valid hex: %s", errkind.MalformedMetadata, err)
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)

	key := &tufmeta.Key{
		KeyType: tufmeta.SchemeED25519,
		Scheme:  tufmeta.SchemeED25519,
		KeyVal:  tufmeta.KeyVal{Public: hex.EncodeToString(public)},
	}
	if err := key.SetOnlineURI("local-testing-key://"); err != nil {
		return nil, err
	}
	keyID, err := tufmeta.ComputeKeyID(key)
	if err != nil {
		return nil, err
	}
	key.KeyID = keyID

	return &ed25519Backend{key: key, private: private}, nil
}
