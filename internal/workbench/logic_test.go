package workbench

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jku/repository-playground/internal/clock"
	"github.com/jku/repository-playground/internal/gitsurface"
	"github.com/jku/repository-playground/internal/repo"
	"github.com/jku/repository-playground/internal/set"
	"github.com/jku/repository-playground/internal/signerverifier"
	"github.com/jku/repository-playground/internal/tufmeta"
)

const testRef = "refs/playground/policy"

// fakeGit is the same in-memory git surface double internal/onlinesign's
// tests use, reused here so the workbench's logic can be exercised against
// a real *repo.Repository without a working tree.
type fakeGit struct {
	refs   map[string]gitsurface.Hash
	blobs  map[string][]byte
	trees  map[string]map[string]gitsurface.Hash
	serial int
}

func newFakeGit() *fakeGit {
	return &fakeGit{refs: map[string]gitsurface.Hash{}, blobs: map[string][]byte{}, trees: map[string]map[string]gitsurface.Hash{}}
}

func (f *fakeGit) nextHash() gitsurface.Hash {
	f.serial++
	digest := sha256.Sum256([]byte{byte(f.serial), byte(f.serial >> 8)})
	h, _ := gitsurface.NewHash(hex.EncodeToString(digest[:20]))
	return h
}

func (f *fakeGit) GetReference(refName string) (gitsurface.Hash, error) {
	h, ok := f.refs[refName]
	if !ok {
		return gitsurface.ZeroHash, gitsurface.ErrReferenceNotFound
	}
	return h, nil
}
func (f *fakeGit) GetCommitTreeID(commitID gitsurface.Hash) (gitsurface.Hash, error) { return commitID, nil }
func (f *fakeGit) GetAllFilesInTree(treeID gitsurface.Hash) (map[string]gitsurface.Hash, error) {
	return f.trees[treeID.String()], nil
}
func (f *fakeGit) ReadBlob(blobID gitsurface.Hash) ([]byte, error) { return f.blobs[blobID.String()], nil }
func (f *fakeGit) WriteBlob(contents []byte) (gitsurface.Hash, error) {
	h := f.nextHash()
	f.blobs[h.String()] = contents
	return h, nil
}
func (f *fakeGit) WriteFlatTree(entries map[string]gitsurface.Hash) (gitsurface.Hash, error) {
	h := f.nextHash()
	f.trees[h.String()] = entries
	return h, nil
}
func (f *fakeGit) Commit(treeID gitsurface.Hash, targetRef, _ string) (gitsurface.Hash, error) {
	f.refs[targetRef] = treeID
	return treeID, nil
}
func (f *fakeGit) Push(_, _ string) error { return nil }
func (f *fakeGit) CheckAndSetReference(refName string, newGitID, _ gitsurface.Hash) error {
	f.refs[refName] = newGitID
	return nil
}

func writeRoleFile(t *testing.T, git *fakeGit, payload any) gitsurface.Hash {
	t.Helper()
	envelope := struct {
		Signed     any                 `json:"signed"`
		Signatures []tufmeta.Signature `json:"signatures"`
	}{Signed: payload}
	contents, err := json.Marshal(envelope)
	require.NoError(t, err)
	blobID, err := git.WriteBlob(contents)
	require.NoError(t, err)
	return blobID
}

// fakeOfflineBackend is a deterministic in-memory SignerBackend, standing in
// for the hardware-token/ambient-keyless backend ResolveOffline would
// otherwise have to reach an external bridge to produce -- exactly the
// reason acceptInvite/continueRole take an already-resolved SignerBackend
// rather than a BackendConfig (see the internal/workbench DESIGN.md entry).
type fakeOfflineBackend struct {
	key     *tufmeta.Key
	private ed25519.PrivateKey
}

func newFakeOfflineBackend(t *testing.T, seedByte byte) *fakeOfflineBackend {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)
	key := &tufmeta.Key{
		KeyType: tufmeta.SchemeED25519,
		Scheme:  tufmeta.SchemeED25519,
		KeyVal:  tufmeta.KeyVal{Public: hex.EncodeToString(public)},
	}
	keyID, err := tufmeta.ComputeKeyID(key)
	require.NoError(t, err)
	key.KeyID = keyID
	return &fakeOfflineBackend{key: key, private: private}
}

func (b *fakeOfflineBackend) PublicKey(_ context.Context) (*tufmeta.Key, error) {
	return b.key, nil
}

func (b *fakeOfflineBackend) Sign(_ context.Context, data []byte) (string, error) {
	return hex.EncodeToString(ed25519.Sign(b.private, data)), nil
}

// setupRepo builds a root + top-level targets + one delegated targets/team
// role, with rootSigner already authorized for root and targets, so the
// tests can exercise both the root/targets and the delegated-role paths
// through delegatingRoleName.
func setupRepo(t *testing.T, now time.Time, rootSigner *fakeOfflineBackend) (*fakeGit, *repo.Repository) {
	t.Helper()
	git := newFakeGit()

	rootKey, err := rootSigner.PublicKey(context.Background())
	require.NoError(t, err)
	require.NoError(t, rootKey.SetKeyOwner("alice"))

	root := tufmeta.NewRootMetadata()
	root.Version = 1
	root.Expires = now.Add(365 * 24 * time.Hour)
	root.AddKey(rootKey)
	root.AddRole(tufmeta.RoleRoot, tufmeta.RoleKeys{KeyIDs: set.FromItems(rootKey.KeyID), Threshold: 1})
	root.AddRole(tufmeta.RoleTargets, tufmeta.RoleKeys{KeyIDs: set.FromItems(rootKey.KeyID), Threshold: 1})

	targets := tufmeta.NewTargetsMetadata()
	targets.Version = 1
	targets.Expires = now.Add(365 * 24 * time.Hour)
	require.NoError(t, targets.AddDelegation("targets/team", []*tufmeta.Key{rootKey}, []string{"team/*"}, 1, 90, 30))

	team := tufmeta.NewTargetsMetadata()
	team.Version = 1
	team.Expires = now.Add(90 * 24 * time.Hour)
	team.SetExpiryPeriodDays(90)
	team.SetSigningPeriodDays(30)

	entries := map[string]gitsurface.Hash{
		"metadata/root.json":         writeRoleFile(t, git, root),
		"metadata/targets.json":      writeRoleFile(t, git, targets),
		"metadata/targets/team.json": writeRoleFile(t, git, team),
	}
	treeID, err := git.WriteFlatTree(entries)
	require.NoError(t, err)
	git.refs[testRef] = treeID

	r, err := repo.Open(context.Background(), git, testRef, clock.Frozen(now), signerverifier.Verifier{})
	require.NoError(t, err)
	return git, r
}

func TestListEditableRolesOrdersRootTargetsThenDelegated(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	roles := listEditableRoles(r.RoleSet())
	assert.Equal(t, []string{tufmeta.RoleRoot, tufmeta.RoleTargets, "targets/team"}, roles)
}

func TestDelegatingRoleName(t *testing.T) {
	assert.Equal(t, tufmeta.RoleRoot, delegatingRoleName(tufmeta.RoleRoot))
	assert.Equal(t, tufmeta.RoleRoot, delegatingRoleName(tufmeta.RoleTargets))
	assert.Equal(t, tufmeta.RoleTargets, delegatingRoleName("targets/team"))
}

func TestCurrentSignersForRootAndDelegatedRole(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	signers, threshold, err := currentSigners(r.RoleSet(), tufmeta.RoleRoot)
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.Equal(t, "alice", signers[0].owner)
	assert.Equal(t, 1, threshold)

	signers, threshold, err = currentSigners(r.RoleSet(), "targets/team")
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.Equal(t, "alice", signers[0].owner)
	assert.Equal(t, 1, threshold)
}

func TestAddSignerInviteThenPendingInvites(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	require.NoError(t, addSignerInvite(r, "targets/team", "bob"))

	invites := pendingInvites(r.RoleSet(), "bob")
	require.Len(t, invites, 1)
	assert.Equal(t, "targets/team", invites[0].role)

	assert.Empty(t, pendingInvites(r.RoleSet(), "carol"))
}

func TestSetThresholdRejectsThresholdAboveKeySetSize(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	err := setThreshold(r, "targets/team", 2)
	require.Error(t, err)
}

func TestSetThresholdAcceptsValidThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	require.NoError(t, addSignerInvite(r, "targets/team", "bob"))
	require.NoError(t, acceptInvite(context.Background(), r, newFakeOfflineBackend(t, 2), "targets/team", "bob"))

	require.NoError(t, setThreshold(r, "targets/team", 2))

	_, threshold, err := currentSigners(r.RoleSet(), "targets/team")
	require.NoError(t, err)
	assert.Equal(t, 2, threshold)
}

func TestSetExpiryPeriods(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	require.NoError(t, setExpiryPeriods(r, "targets/team", 45, 15))

	role, ok := r.ReadRole("targets/team")
	require.True(t, ok)
	common, err := roleCommonOf(role.Payload)
	require.NoError(t, err)
	assert.Equal(t, 45, common.ExpiryPeriodDays())
	assert.Equal(t, 15, common.SigningPeriodDays())
}

func TestAcceptInviteAddsKeyClearsInviteAndSigns(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, r := setupRepo(t, now, newFakeOfflineBackend(t, 1))

	require.NoError(t, addSignerInvite(r, "targets/team", "bob"))
	require.Len(t, pendingInvites(r.RoleSet(), "bob"), 1)

	bobBackend := newFakeOfflineBackend(t, 2)
	require.NoError(t, acceptInvite(context.Background(), r, bobBackend, "targets/team", "bob"))

	assert.Empty(t, pendingInvites(r.RoleSet(), "bob"))

	signers, _, err := currentSigners(r.RoleSet(), "targets/team")
	require.NoError(t, err)
	owners := make([]string, len(signers))
	for i, s := range signers {
		owners[i] = s.owner
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, owners)

	role, ok := r.ReadRole("targets/team")
	require.True(t, ok)
	bobKey, err := bobBackend.PublicKey(context.Background())
	require.NoError(t, err)
	found := false
	for _, sig := range role.Signatures {
		if sig.KeyID == bobKey.KeyID {
			found = true
		}
	}
	assert.True(t, found, "expected a signature from bob's newly bound key")
}

func TestContinueRoleReplacesRatherThanDuplicatesSameKeySignature(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rootSigner := newFakeOfflineBackend(t, 1)
	_, r := setupRepo(t, now, rootSigner)

	require.NoError(t, continueRole(context.Background(), r, rootSigner, "targets/team"))
	role, ok := r.ReadRole("targets/team")
	require.True(t, ok)
	require.Len(t, role.Signatures, 1)
	firstSig := role.Signatures[0].Sig

	require.NoError(t, setExpiryPeriods(r, "targets/team", 60, 20))
	require.NoError(t, continueRole(context.Background(), r, rootSigner, "targets/team"))

	role, ok = r.ReadRole("targets/team")
	require.True(t, ok)
	require.Len(t, role.Signatures, 1, "re-signing with the same key must replace, not duplicate")
	assert.NotEqual(t, firstSig, role.Signatures[0].Sig, "signature must cover the updated payload")
}
