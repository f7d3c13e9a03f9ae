package tufmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVerifier treats any signature string equal to the key's public value
// suffixed with "-sig" as valid, and the literal "bad" as invalid but
// present (so tests can distinguish "insufficient" from "invalid").
type fakeVerifier struct{}

func (fakeVerifier) Verify(key *Key, _ []byte, sigHex string) (bool, error) {
	if sigHex == "bad" {
		return false, nil
	}
	return sigHex == key.KeyVal.Public+"-sig", nil
}

func TestVerifySignaturesOK(t *testing.T) {
	keys := []*Key{{KeyID: "k1", KeyVal: KeyVal{Public: "pub1"}}, {KeyID: "k2", KeyVal: KeyVal{Public: "pub2"}}}
	sigs := []Signature{{KeyID: "k1", Sig: "pub1-sig"}, {KeyID: "k2", Sig: "pub2-sig"}}

	result, err := VerifySignatures(fakeVerifier{}, nil, sigs, keys, 2)
	require.NoError(t, err)
	assert.Equal(t, VerifyOK, result.Outcome)
	assert.Equal(t, 2, result.ValidSignatures)
}

func TestVerifySignaturesInsufficient(t *testing.T) {
	keys := []*Key{{KeyID: "k1", KeyVal: KeyVal{Public: "pub1"}}, {KeyID: "k2", KeyVal: KeyVal{Public: "pub2"}}}
	sigs := []Signature{{KeyID: "k1", Sig: "pub1-sig"}}

	result, err := VerifySignatures(fakeVerifier{}, nil, sigs, keys, 2)
	require.NoError(t, err)
	assert.Equal(t, VerifyInsufficient, result.Outcome)
}

func TestVerifySignaturesInvalid(t *testing.T) {
	keys := []*Key{{KeyID: "k1", KeyVal: KeyVal{Public: "pub1"}}, {KeyID: "k2", KeyVal: KeyVal{Public: "pub2"}}}
	sigs := []Signature{{KeyID: "k1", Sig: "pub1-sig"}, {KeyID: "k2", Sig: "bad"}}

	result, err := VerifySignatures(fakeVerifier{}, nil, sigs, keys, 2)
	require.NoError(t, err)
	assert.Equal(t, VerifyInvalid, result.Outcome)
	assert.Equal(t, []string{"k2"}, result.InvalidSignatures)
}

func TestVerifySignaturesDuplicateFromSameKeyCountsOnce(t *testing.T) {
	keys := []*Key{{KeyID: "k1", KeyVal: KeyVal{Public: "pub1"}}}
	sigs := []Signature{{KeyID: "k1", Sig: "pub1-sig"}, {KeyID: "k1", Sig: "pub1-sig"}}

	result, err := VerifySignatures(fakeVerifier{}, nil, sigs, keys, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ValidSignatures)
}

func TestCanonicalBytesStableAcrossFieldOrder(t *testing.T) {
	a := &RootMetadata{Common: Common{Type: RoleRoot, Version: 1}, Keys: map[string]*Key{}, Roles: map[string]RoleKeys{}}
	b := &RootMetadata{Roles: map[string]RoleKeys{}, Keys: map[string]*Key{}, Common: Common{Version: 1, Type: RoleRoot}}

	bytesA, err := CanonicalBytes(a)
	require.NoError(t, err)
	bytesB, err := CanonicalBytes(b)
	require.NoError(t, err)
	assert.Equal(t, bytesA, bytesB)
}
