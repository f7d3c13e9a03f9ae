package tufmeta

import (
	"encoding/json"
	"fmt"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"

	"github.com/jku/repository-playground/internal/errkind"
)

// Signature is one signer's signature over a role's canonical bytes.
type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"` // hex-encoded
}

// Verifier abstracts the scheme-specific signature check; it is implemented
// by internal/signerverifier so that tufmeta stays free of crypto
// dependencies beyond canonicalization.
type Verifier interface {
	Verify(key *Key, data []byte, sigHex string) (bool, error)
}

// CanonicalBytes returns the stable, canonical serialization of signed (no
// insignificant whitespace, sorted keys), matching the gittuf/securesystemslib
// cjson convention so the same bytes are produced regardless of field
// insertion order.
func CanonicalBytes(signed any) ([]byte, error) {
	// Round-trip through encoding/json first so struct field tags and
	// custom MarshalJSON methods are honored, then canonicalize the
	// resulting generic value.
	intermediate, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
	}

	var generic any
	if err := json.Unmarshal(intermediate, &generic); err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
	}

	canonical, err := cjson.EncodeCanonical(generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
	}
	return canonical, nil
}

// VerifyOutcome is the three-way result of checking a role's signatures
// against a delegating key set and threshold (spec.md §4.A).
type VerifyOutcome int

const (
	// VerifyOK means the threshold was met by valid signatures.
	VerifyOK VerifyOutcome = iota
	// VerifyInsufficient means fewer than k valid signatures are present,
	// but none of the present ones were invalid.
	VerifyInsufficient
	// VerifyInvalid means at least one present signature failed to verify.
	VerifyInvalid
)

// VerifyResult reports the outcome of verifying a role's signatures, the
// number of valid signatures found, and the key IDs of any invalid ones.
type VerifyResult struct {
	Outcome           VerifyOutcome
	ValidSignatures   int
	InvalidSignatures []string // key IDs of signatures that failed to verify
	MissingKeyIDs     []string // signatures referencing keys not in the key set
}

// VerifySignatures checks signedBytes's signatures against keys, requiring
// at least threshold distinct valid signatures.
func VerifySignatures(verifier Verifier, signedBytes []byte, signatures []Signature, keys []*Key, threshold int) (*VerifyResult, error) {
	keysByID := make(map[string]*Key, len(keys))
	for _, key := range keys {
		keysByID[key.KeyID] = key
	}

	result := &VerifyResult{}
	seen := map[string]bool{}
	for _, sig := range signatures {
		key, ok := keysByID[sig.KeyID]
		if !ok {
			result.MissingKeyIDs = append(result.MissingKeyIDs, sig.KeyID)
			continue
		}
		if seen[sig.KeyID] {
			continue // duplicate signature from the same key counts once
		}

		ok, err := verifier.Verify(key, signedBytes, sig.Sig)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errkind.SignatureRejected, err)
		}
		if !ok {
			result.InvalidSignatures = append(result.InvalidSignatures, sig.KeyID)
			continue
		}

		seen[sig.KeyID] = true
		result.ValidSignatures++
	}

	switch {
	case len(result.InvalidSignatures) > 0:
		result.Outcome = VerifyInvalid
	case result.ValidSignatures >= threshold:
		result.Outcome = VerifyOK
	default:
		result.Outcome = VerifyInsufficient
	}
	return result, nil
}
