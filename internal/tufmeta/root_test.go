package tufmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineKey(t *testing.T, id, owner string) *Key {
	t.Helper()
	key := &Key{KeyID: id, KeyType: SchemeED25519, Scheme: SchemeED25519, KeyVal: KeyVal{Public: "ab"}}
	require.NoError(t, key.SetKeyOwner(owner))
	return key
}

func onlineKey(t *testing.T, id, uri string) *Key {
	t.Helper()
	key := &Key{KeyID: id, KeyType: SchemeED25519, Scheme: SchemeED25519, KeyVal: KeyVal{Public: "ab"}}
	require.NoError(t, key.SetOnlineURI(uri))
	return key
}

func TestRootMetadataAddRootKey(t *testing.T) {
	root := NewRootMetadata()
	key := offlineKey(t, "k1", "alice")

	require.NoError(t, root.AddRootKey(key))

	role, _, err := root.RoleKeySet(RoleRoot)
	require.NoError(t, err)
	require.Len(t, role, 1)
	assert.Equal(t, "k1", role[0].KeyID)

	key2 := offlineKey(t, "k2", "bob")
	require.NoError(t, root.AddRootKey(key2))
	role, threshold, err := root.RoleKeySet(RoleRoot)
	require.NoError(t, err)
	assert.Len(t, role, 2)
	assert.Equal(t, 1, threshold)
}

func TestRootMetadataUpdateThreshold(t *testing.T) {
	root := NewRootMetadata()
	require.NoError(t, root.AddRootKey(offlineKey(t, "k1", "alice")))

	err := root.UpdateThreshold(RoleRoot, 2)
	require.Error(t, err, "threshold cannot exceed key set size")

	require.NoError(t, root.AddRootKey(offlineKey(t, "k2", "bob")))
	require.NoError(t, root.UpdateThreshold(RoleRoot, 2))
}

func TestRootMetadataValidateRejectsOfflineSnapshotKey(t *testing.T) {
	root := NewRootMetadata()
	key := offlineKey(t, "k1", "alice")
	root.AddKey(key)
	root.AddRole(RoleSnapshot, RoleKeys{KeyIDs: setOf(key.KeyID), Threshold: 1})

	err := root.Validate()
	require.Error(t, err)
}

func TestRootMetadataValidateAcceptsOnlineSnapshotKey(t *testing.T) {
	root := NewRootMetadata()
	key := onlineKey(t, "k1", "gcpkms://k")
	root.AddKey(key)
	root.AddRole(RoleSnapshot, RoleKeys{KeyIDs: setOf(key.KeyID), Threshold: 1})

	require.NoError(t, root.Validate())
}
