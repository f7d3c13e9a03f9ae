package signerverifier

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/tufmeta"
)

// Verifier implements tufmeta.Verifier, dispatching on a key's recognized
// scheme. It is the "verify_signatures" half of the metadata model's surface
// (spec.md §4.A): tufmeta owns the data shapes, this package owns the
// cryptography.
type Verifier struct{}

var _ tufmeta.Verifier = Verifier{}

// Verify checks sigHex against data for key, dispatching on key.Scheme.
func (Verifier) Verify(key *tufmeta.Key, data []byte, sigHex string) (bool, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("%w: signature is not valid hex", errkind.MalformedMetadata)
	}

	switch key.Scheme {
	case tufmeta.SchemeED25519:
		return verifyED25519(key, data, sig)
	case tufmeta.SchemeECDSA:
		return verifyECDSA(key, data, sig)
	case tufmeta.SchemeGPG:
		return verifyGPG(key, data, sig)
	case tufmeta.SchemeFulcio:
		// Full verification requires validating the signer's Fulcio
		// certificate chain against the Sigstore root and checking
		// the embedded OIDC identity; that chain-of-trust check is
		// the ambient keyless backend's concern to produce, and the
		// downloader client's concern to re-verify (out of scope per
		// spec.md §1). The engine only needs a bool here, which would
		// come from sigstore-go's verification APIs once a real
		// certificate and bundle are available.
		return false, fmt.Errorf("%w: fulcio certificate-chain verification not available in this context", errkind.UnknownScheme)
	default:
		return false, fmt.Errorf("%w: %q", errkind.UnknownScheme, key.Scheme)
	}
}

func verifyED25519(key *tufmeta.Key, data, sig []byte) (bool, error) {
	public, err := hex.DecodeString(key.KeyVal.Public)
	if err != nil {
		return false, fmt.Errorf("%w: ed25519 public key is not valid hex", errkind.MalformedMetadata)
	}
	if len(public) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: ed25519 public key has wrong size", errkind.MalformedMetadata)
	}
	return ed25519.Verify(ed25519.PublicKey(public), data, sig), nil
}

func verifyECDSA(key *tufmeta.Key, data, sig []byte) (bool, error) {
	block, _ := pem.Decode([]byte(key.KeyVal.Public))
	if block == nil {
		return false, fmt.Errorf("%w: ecdsa public key is not PEM encoded", errkind.MalformedMetadata)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecdsaPub.Curve != elliptic.P256() {
		return false, fmt.Errorf("%w: key is not a P-256 ECDSA public key", errkind.MalformedMetadata)
	}

	half := len(sig) / 2
	if half == 0 {
		return false, nil
	}
	r := new(big.Int).SetBytes(sig[:half])
	s := new(big.Int).SetBytes(sig[half:])
	digest := hashForSigning(data)
	return ecdsa.Verify(ecdsaPub, digest, r, s), nil
}

func verifyGPG(key *tufmeta.Key, data, sig []byte) (bool, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(key.KeyVal.Public))
	if err != nil {
		return false, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
	}
	_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	return err == nil, nil
}
