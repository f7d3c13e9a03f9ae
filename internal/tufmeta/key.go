// Package tufmeta is the in-memory TUF role graph: the metadata model
// component. It knows nothing about files, git, or signer backends — it is a
// pure data model plus the invariant checks defined in spec.md §3.
package tufmeta

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"

	"github.com/jku/repository-playground/internal/errkind"
)

// Recognized key schemes. A key carrying any other scheme string causes
// UnknownScheme at load time.
const (
	SchemeED25519   = "ed25519"
	SchemeRSASSAPSS = "rsassa-pss-sha256"
	SchemeECDSA     = "ecdsa-sha2-nistp256"
	SchemeGPG       = "gpg"
	SchemeFulcio    = "fulcio" // sigstore-oidc ambient keyless
)

var recognizedSchemes = map[string]bool{
	SchemeED25519:   true,
	SchemeRSASSAPSS: true,
	SchemeECDSA:     true,
	SchemeGPG:       true,
	SchemeFulcio:    true,
}

// Custom field names recognized on a Key (spec.md §4.A table).
const (
	CustomOnlineURI = "x-playground-online-uri"
	CustomKeyOwner  = "x-playground-keyowner"
)

// KeyVal holds the public key material only; the metadata model carries no
// private key — signing is delegated to a SignerBackend.
type KeyVal struct {
	Public string `json:"public"`
}

// Key is a TUF public key entry, with gittuf/playground-style custom fields
// preserved verbatim alongside the two the model recognizes.
type Key struct {
	KeyID               string                     `json:"keyid"`
	KeyType             string                     `json:"keytype"`
	Scheme              string                     `json:"scheme"`
	KeyIDHashAlgorithms []string                   `json:"keyid_hash_algorithms,omitempty"`
	KeyVal              KeyVal                     `json:"keyval"`
	Custom              map[string]json.RawMessage `json:"custom,omitempty"`
}

// LoadKeyFromBytes parses a key entry and validates it against the §3 "every
// key is either online or owned, never both, never neither" invariant.
func LoadKeyFromBytes(contents []byte) (*Key, error) {
	var key Key
	if err := json.Unmarshal(contents, &key); err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
	}

	if !recognizedSchemes[key.Scheme] {
		return nil, fmt.Errorf("%w: %q", errkind.UnknownScheme, key.Scheme)
	}

	if key.KeyID == "" {
		keyID, err := calculateKeyID(&key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errkind.MalformedMetadata, err)
		}
		key.KeyID = keyID
	}

	if err := key.ValidateOwnership(); err != nil {
		return nil, err
	}

	return &key, nil
}

// ComputeKeyID derives the key's content-addressed ID the same way
// LoadKeyFromBytes does for keys loaded without one already assigned. Signer
// backends use this to assign a KeyID to freshly generated public keys.
func ComputeKeyID(k *Key) (string, error) {
	return calculateKeyID(k)
}

func calculateKeyID(k *Key) (string, error) {
	canonicalForm := map[string]any{
		"keytype":               k.KeyType,
		"scheme":                k.Scheme,
		"keyid_hash_algorithms": k.KeyIDHashAlgorithms,
		"keyval": map[string]string{
			"public": k.KeyVal.Public,
		},
	}
	canonical, err := cjson.EncodeCanonical(canonicalForm)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// OnlineURI returns the key's x-playground-online-uri custom field, and
// whether it was present.
func (k *Key) OnlineURI() (string, bool) {
	raw, ok := k.Custom[CustomOnlineURI]
	if !ok {
		return "", false
	}
	var uri string
	if err := json.Unmarshal(raw, &uri); err != nil {
		return "", false
	}
	return uri, true
}

// KeyOwner returns the key's x-playground-keyowner custom field, and whether
// it was present.
func (k *Key) KeyOwner() (string, bool) {
	raw, ok := k.Custom[CustomKeyOwner]
	if !ok {
		return "", false
	}
	var owner string
	if err := json.Unmarshal(raw, &owner); err != nil {
		return "", false
	}
	return owner, true
}

// IsOnline returns true if the key carries an online URI.
func (k *Key) IsOnline() bool {
	_, ok := k.OnlineURI()
	return ok
}

// SetOnlineURI marks the key as online, resolved through the signer backend
// at the given URI.
func (k *Key) SetOnlineURI(uri string) error {
	raw, err := json.Marshal(uri)
	if err != nil {
		return err
	}
	if k.Custom == nil {
		k.Custom = map[string]json.RawMessage{}
	}
	delete(k.Custom, CustomKeyOwner)
	k.Custom[CustomOnlineURI] = raw
	return nil
}

// SetKeyOwner marks the key as offline, owned by the given handle.
func (k *Key) SetKeyOwner(owner string) error {
	raw, err := json.Marshal(owner)
	if err != nil {
		return err
	}
	if k.Custom == nil {
		k.Custom = map[string]json.RawMessage{}
	}
	delete(k.Custom, CustomOnlineURI)
	k.Custom[CustomKeyOwner] = raw
	return nil
}

// ValidateOwnership enforces "every key is online xor owned, never both,
// never neither" (spec.md §3 invariants).
func (k *Key) ValidateOwnership() error {
	_, online := k.OnlineURI()
	_, owned := k.KeyOwner()
	switch {
	case online && owned:
		return fmt.Errorf("%w: key %q carries both %s and %s", errkind.InvariantViolation, k.KeyID, CustomOnlineURI, CustomKeyOwner)
	case !online && !owned:
		return fmt.Errorf("%w: key %q carries neither %s nor %s", errkind.InvariantViolation, k.KeyID, CustomOnlineURI, CustomKeyOwner)
	default:
		return nil
	}
}
