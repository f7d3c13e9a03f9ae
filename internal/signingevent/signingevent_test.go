package signingevent

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jku/repository-playground/internal/signerverifier"
	"github.com/jku/repository-playground/internal/tufmeta"
)

type testSigner struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

func newTestSigner(t *testing.T, id string) (*tufmeta.Key, testSigner) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key := &tufmeta.Key{KeyID: id, KeyType: "ed25519", Scheme: tufmeta.SchemeED25519, KeyVal: tufmeta.KeyVal{Public: hex.EncodeToString(pub)}}
	require.NoError(t, key.SetKeyOwner("owner-"+id))
	return key, testSigner{public: pub, private: priv}
}

func (s testSigner) sign(t *testing.T, data []byte) tufmeta.Signature {
	t.Helper()
	return tufmeta.Signature{Sig: hex.EncodeToString(ed25519.Sign(s.private, data))}
}

func TestEvaluateReturnsEmptyForIdenticalRoleSets(t *testing.T) {
	key, _ := newTestSigner(t, "k1")
	root := tufmeta.NewRootMetadata()
	root.Version = 1
	root.Expires = time.Now().Add(365 * 24 * time.Hour)
	require.NoError(t, root.AddRootKey(key))

	roles := tufmeta.RoleSet{tufmeta.RoleRoot: {Name: tufmeta.RoleRoot, Payload: root}}

	result, err := Evaluate(roles, roles, signerverifier.Verifier{}, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, VerdictEmpty, result.Kind)
}

func TestEvaluatePublishableAfterThresholdMet(t *testing.T) {
	key, signer := newTestSigner(t, "k1")
	now := time.Now()

	base := tufmeta.RoleSet{}

	root := tufmeta.NewRootMetadata()
	root.Version = 1
	root.Expires = now.Add(365 * 24 * time.Hour)
	root.SetExpiryPeriodDays(365)
	require.NoError(t, root.AddRootKey(key))
	signed := &tufmeta.SignedRole{Name: tufmeta.RoleRoot, Payload: root}
	canonical, err := signed.CanonicalBytes()
	require.NoError(t, err)
	sig := signer.sign(t, canonical)
	sig.KeyID = key.KeyID
	signed.Signatures = []tufmeta.Signature{sig}

	event := tufmeta.RoleSet{tufmeta.RoleRoot: signed}

	result, err := Evaluate(base, event, signerverifier.Verifier{}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictPublishable, result.Kind)
}

func TestEvaluateIncompleteWhenThresholdUnmet(t *testing.T) {
	key1, _ := newTestSigner(t, "k1")
	key2, _ := newTestSigner(t, "k2")
	now := time.Now()

	base := tufmeta.RoleSet{}

	root := tufmeta.NewRootMetadata()
	root.Version = 1
	root.Expires = now.Add(365 * 24 * time.Hour)
	root.SetExpiryPeriodDays(365)
	require.NoError(t, root.AddRootKey(key1))
	require.NoError(t, root.AddRootKey(key2))
	require.NoError(t, root.UpdateThreshold(tufmeta.RoleRoot, 2))

	signed := &tufmeta.SignedRole{Name: tufmeta.RoleRoot, Payload: root}
	event := tufmeta.RoleSet{tufmeta.RoleRoot: signed}

	result, err := Evaluate(base, event, signerverifier.Verifier{}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictIncomplete, result.Kind)
	require.Len(t, result.Obligations, 1)
	assert.ElementsMatch(t, []string{"owner-k1", "owner-k2"}, result.Obligations[0].PendingOwners)
}

func TestEvaluateInvalidOnIllegalOnlineChange(t *testing.T) {
	now := time.Now()
	expires := now.Add(10 * 24 * time.Hour)

	base := tufmeta.RoleSet{
		tufmeta.RoleSnapshot: {Name: tufmeta.RoleSnapshot, Payload: &tufmeta.SnapshotMetadata{Common: tufmeta.Common{Type: tufmeta.RoleSnapshot, Version: 1, Expires: expires}}},
	}
	event := tufmeta.RoleSet{
		tufmeta.RoleSnapshot: {Name: tufmeta.RoleSnapshot, Payload: &tufmeta.SnapshotMetadata{Common: tufmeta.Common{Type: tufmeta.RoleSnapshot, Version: 2, Expires: expires}}},
	}

	result, err := Evaluate(base, event, signerverifier.Verifier{}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictInvalid, result.Kind)
	require.Len(t, result.InvalidReasons, 1)
	assert.Contains(t, result.InvalidReasons[0].Reasons, ReasonIllegalOnlineChange)
}

func TestEvaluateInvalidOnVersionRegressionShortCircuitsRoot(t *testing.T) {
	key, _ := newTestSigner(t, "k1")
	now := time.Now()

	base := tufmeta.RoleSet{}
	baseRoot := tufmeta.NewRootMetadata()
	baseRoot.Version = 2
	baseRoot.Expires = now.Add(365 * 24 * time.Hour)
	require.NoError(t, baseRoot.AddRootKey(key))
	base[tufmeta.RoleRoot] = &tufmeta.SignedRole{Name: tufmeta.RoleRoot, Payload: baseRoot}

	eventRoot := tufmeta.NewRootMetadata()
	eventRoot.Version = 1 // regression
	eventRoot.Expires = now.Add(365 * 24 * time.Hour)
	require.NoError(t, eventRoot.AddRootKey(key))
	event := tufmeta.RoleSet{tufmeta.RoleRoot: {Name: tufmeta.RoleRoot, Payload: eventRoot}}

	result, err := Evaluate(base, event, signerverifier.Verifier{}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, VerdictInvalid, result.Kind)
	require.Len(t, result.InvalidReasons, 1)
	assert.Equal(t, tufmeta.RoleRoot, result.InvalidReasons[0].Role)
	assert.Contains(t, result.InvalidReasons[0].Reasons, ReasonVersionRegression)
}

func TestRenderIncludesVerdictLine(t *testing.T) {
	result := &Result{Kind: VerdictEmpty}
	out := Render(result)
	assert.Contains(t, out, "verdict: empty")
}
