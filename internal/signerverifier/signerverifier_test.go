package signerverifier

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jku/repository-playground/internal/tufmeta"
)

func TestLocalTestingBackendSignAndVerify(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	backend, err := newLocalTestingBackend(context.Background(), "", BackendConfig{LocalTestingKey: hex.EncodeToString(priv.Seed())})
	require.NoError(t, err)

	key, err := backend.PublicKey(context.Background())
	require.NoError(t, err)
	assert.True(t, key.IsOnline())

	sigHex, err := backend.Sign(context.Background(), []byte("hello"))
	require.NoError(t, err)

	ok, err := Verifier{}.Verify(key, []byte("hello"), sigHex)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verifier{}.Verify(key, []byte("tampered"), sigHex)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalTestingBackendRequiresEnv(t *testing.T) {
	_, err := newLocalTestingBackend(context.Background(), "", BackendConfig{})
	require.Error(t, err)
}

func TestSchemeOfDispatchesByURIPrefix(t *testing.T) {
	assert.Equal(t, "gcpkms", schemeOf("gcpkms://projects/p/locations/l/keyRings/r/cryptoKeys/k"))
	assert.Equal(t, "azurekms", schemeOf("azurekms://vault.vault.azure.net/my-key"))
	assert.Equal(t, "ambient", schemeOf(""))
}

func TestRegistryHasEntryForEveryDocumentedScheme(t *testing.T) {
	for _, scheme := range []string{"gcpkms", "azurekms", "file", "keyless", "ambient"} {
		_, ok := registry[scheme]
		assert.True(t, ok, "missing backend factory for scheme %q", scheme)
	}
}

func TestResolveOnlineUnknownScheme(t *testing.T) {
	key := &tufmeta.Key{Scheme: tufmeta.SchemeECDSA}
	require.NoError(t, key.SetOnlineURI("notarealscheme://x"))
	_, err := ResolveOnline(context.Background(), key, BackendConfig{})
	require.Error(t, err)
}

func TestResolveOnlineBypassesToLocalTestingKeyWhenSet(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key := &tufmeta.Key{Scheme: tufmeta.SchemeECDSA}
	require.NoError(t, key.SetOnlineURI("gcpkms://would-normally-dial-out"))

	backend, err := ResolveOnline(context.Background(), key, BackendConfig{LocalTestingKey: hex.EncodeToString(priv.Seed())})
	require.NoError(t, err)

	pub, err := backend.PublicKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tufmeta.SchemeED25519, pub.Scheme)
}

func TestResolveOfflineFallsBackToAmbientWithoutPKCS11Config(t *testing.T) {
	_, err := ResolveOffline(context.Background(), BackendConfig{})
	require.Error(t, err) // ambient backend requires a real OIDC exchange, unavailable here
}

func TestResolveOfflinePrefersHardwareTokenWhenConfigured(t *testing.T) {
	_, err := ResolveOffline(context.Background(), BackendConfig{PKCS11LibPath: "/opt/pkcs11/lib.so"})
	require.Error(t, err) // no real bridge wired in-process, but it must attempt "file" not "ambient"
}

func TestVerifierRejectsMalformedHexSignature(t *testing.T) {
	key := &tufmeta.Key{Scheme: tufmeta.SchemeED25519, KeyVal: tufmeta.KeyVal{Public: "ab"}}
	_, err := Verifier{}.Verify(key, []byte("x"), "not-hex!!")
	require.Error(t, err)
}
