// Package signerverifier implements the signer backend registry named in
// spec.md §4.F: hardware token (PKCS#11), cloud KMS, and ambient keyless
// (sigstore-style OIDC). The engine components never talk to a hardware
// token or a cloud API directly -- they hold a SignerBackend capability,
// matching spec.md §1's "opaque signer backend capability {public_key(),
// sign(bytes) -> signature}".
package signerverifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/tufmeta"
)

// SignerBackend is the capability an engine entry point is given instead of
// talking to a hardware token, a cloud KMS, or an OIDC identity provider
// directly.
type SignerBackend interface {
	// PublicKey returns the tuf Key this backend signs for.
	PublicKey(ctx context.Context) (*tufmeta.Key, error)
	// Sign returns a hex-encoded signature over data.
	Sign(ctx context.Context, data []byte) (string, error)
}

// Factory constructs a SignerBackend for a key whose x-playground-online-uri
// (or, for offline keys, a uri-shaped local configuration reference) matches
// the factory's scheme.
type Factory func(ctx context.Context, uriOrRef string, cfg BackendConfig) (SignerBackend, error)

// BackendConfig carries the ambient inputs a backend may need: the PKCS#11
// library path and the test-only local signing key. It mirrors internal/config.Config's offline-signing fields plus the
// env-var contracts from spec.md §6.
type BackendConfig struct {
	PKCS11LibPath   string
	LocalTestingKey string // hex ed25519 private key, see LOCAL_TESTING_KEY
}

var registry = map[string]Factory{}

func register(scheme string, factory Factory) {
	registry[scheme] = factory
}

// ResolveOnline picks the online signer backend for key, whose choice is
// driven by the key's x-playground-online-uri scheme (spec.md §4.F), except
// that LOCAL_TESTING_KEY (spec.md §6) always takes precedence and bypasses
// cloud KMS entirely.
func ResolveOnline(ctx context.Context, key *tufmeta.Key, cfg BackendConfig) (SignerBackend, error) {
	if cfg.LocalTestingKey != "" {
		return resolve(ctx, "keyless", "", cfg)
	}
	uri, ok := key.OnlineURI()
	if !ok {
		return nil, fmt.Errorf("%w: key %q has no x-playground-online-uri", errkind.MalformedMetadata, key.KeyID)
	}
	return resolve(ctx, schemeOf(uri), uri, cfg)
}

// ResolveOffline picks the offline signer backend for a human signer,
// driven by local configuration (spec.md §4.F): hardware token if
// pykcs11lib is configured, otherwise ambient keyless.
func ResolveOffline(ctx context.Context, cfg BackendConfig) (SignerBackend, error) {
	if cfg.PKCS11LibPath != "" {
		return resolve(ctx, "file", cfg.PKCS11LibPath, cfg)
	}
	return resolve(ctx, "ambient", "", cfg)
}

func resolve(ctx context.Context, scheme, uriOrRef string, cfg BackendConfig) (SignerBackend, error) {
	factory, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no signer backend registered for scheme %q", errkind.UnknownScheme, scheme)
	}
	backend, err := factory(ctx, uriOrRef, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}
	return backend, nil
}

func schemeOf(uriOrRef string) string {
	if idx := strings.Index(uriOrRef, "://"); idx != -1 {
		return uriOrRef[:idx]
	}
	return "ambient"
}
