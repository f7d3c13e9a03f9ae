package tufmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetsAddUpdateRemoveDelegation(t *testing.T) {
	targets := NewTargetsMetadata()
	key := offlineKey(t, "k1", "alice")

	require.NoError(t, targets.AddDelegation("team-a", []*Key{key}, []string{"team-a/*"}, 1, 10, 4))

	_, exists := targets.Delegations.Find("team-a")
	assert.True(t, exists)

	key2 := offlineKey(t, "k2", "bob")
	require.NoError(t, targets.UpdateDelegation("team-a", []*Key{key, key2}, []string{"team-a/*", "shared/*"}, 2))

	keys, threshold, err := targets.DelegationKeySet("team-a")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, 2, threshold)

	targets.RemoveDelegation("team-a")
	_, exists = targets.Delegations.Find("team-a")
	assert.False(t, exists)
}

func TestDelegationMatches(t *testing.T) {
	d := Delegation{Paths: []string{"team-a/*"}}
	assert.True(t, d.Matches("team-a/file.json"))
	assert.False(t, d.Matches("team-b/file.json"))
}

func TestDelegationValidateRejectsEmptyPaths(t *testing.T) {
	d := Delegation{Name: "x", RoleKeys: RoleKeys{KeyIDs: setOf("k1"), Threshold: 1}}
	require.Error(t, d.Validate())
}

func TestValidateTargetFilesDetectsMismatchAndOrphans(t *testing.T) {
	targets := NewTargetsMetadata()
	targets.Targets["a.txt"] = TargetFileInfo{Length: 3, Hashes: map[string]string{"sha256": "abc"}}

	t.Run("hash mismatch", func(t *testing.T) {
		err := targets.ValidateTargetFiles(map[string]string{"a.txt": "def"})
		require.Error(t, err)
	})

	t.Run("missing from disk", func(t *testing.T) {
		err := targets.ValidateTargetFiles(map[string]string{})
		require.Error(t, err)
	})

	t.Run("file without entry", func(t *testing.T) {
		err := targets.ValidateTargetFiles(map[string]string{"a.txt": "abc", "b.txt": "xyz"})
		require.Error(t, err)
	})

	t.Run("matches", func(t *testing.T) {
		err := targets.ValidateTargetFiles(map[string]string{"a.txt": "abc"})
		require.NoError(t, err)
	})
}
