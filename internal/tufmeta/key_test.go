package tufmeta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeyFromBytes(t *testing.T) {
	t.Run("valid online key", func(t *testing.T) {
		raw := []byte(`{
			"keyid": "abc123",
			"keytype": "ed25519",
			"scheme": "ed25519",
			"keyval": {"public": "deadbeef"},
			"custom": {"x-playground-online-uri": "gcpkms://projects/p/locations/l/keyRings/r/cryptoKeys/k"}
		}`)
		key, err := LoadKeyFromBytes(raw)
		require.NoError(t, err)
		assert.True(t, key.IsOnline())
		uri, ok := key.OnlineURI()
		assert.True(t, ok)
		assert.Contains(t, uri, "gcpkms://")
	})

	t.Run("valid offline key", func(t *testing.T) {
		raw := []byte(`{
			"keyid": "abc123",
			"keytype": "ed25519",
			"scheme": "ed25519",
			"keyval": {"public": "deadbeef"},
			"custom": {"x-playground-keyowner": "alice"}
		}`)
		key, err := LoadKeyFromBytes(raw)
		require.NoError(t, err)
		assert.False(t, key.IsOnline())
		owner, ok := key.KeyOwner()
		assert.True(t, ok)
		assert.Equal(t, "alice", owner)
	})

	t.Run("unknown scheme rejected", func(t *testing.T) {
		raw := []byte(`{"keyid":"x","keytype":"foo","scheme":"not-a-scheme","keyval":{"public":"ab"}}`)
		_, err := LoadKeyFromBytes(raw)
		require.Error(t, err)
	})

	t.Run("neither online nor owned is invalid", func(t *testing.T) {
		raw := []byte(`{"keyid":"x","keytype":"ed25519","scheme":"ed25519","keyval":{"public":"ab"}}`)
		_, err := LoadKeyFromBytes(raw)
		require.Error(t, err)
	})

	t.Run("both online and owned is invalid", func(t *testing.T) {
		raw := []byte(`{
			"keyid": "x", "keytype": "ed25519", "scheme": "ed25519", "keyval": {"public": "ab"},
			"custom": {"x-playground-online-uri": "gcpkms://k", "x-playground-keyowner": "alice"}
		}`)
		_, err := LoadKeyFromBytes(raw)
		require.Error(t, err)
	})

	t.Run("keyid computed when absent", func(t *testing.T) {
		raw := []byte(`{
			"keytype": "ed25519", "scheme": "ed25519", "keyval": {"public": "ab"},
			"custom": {"x-playground-keyowner": "alice"}
		}`)
		key, err := LoadKeyFromBytes(raw)
		require.NoError(t, err)
		assert.NotEmpty(t, key.KeyID)
	})
}

func TestKeyUnknownCustomFieldsPreservedVerbatim(t *testing.T) {
	raw := []byte(`{
		"keyid": "abc123", "keytype": "ed25519", "scheme": "ed25519", "keyval": {"public": "deadbeef"},
		"custom": {"x-playground-keyowner": "alice", "x-vendor-note": "some value"}
	}`)
	key, err := LoadKeyFromBytes(raw)
	require.NoError(t, err)

	out, err := json.Marshal(key)
	require.NoError(t, err)

	var roundTripped Key
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	assert.Equal(t, key.Custom["x-vendor-note"], roundTripped.Custom["x-vendor-note"])
}

func TestSetOnlineAndOwnerAreMutuallyExclusive(t *testing.T) {
	key := &Key{KeyID: "k1"}
	require.NoError(t, key.SetKeyOwner("alice"))
	assert.False(t, key.IsOnline())

	require.NoError(t, key.SetOnlineURI("gcpkms://k"))
	assert.True(t, key.IsOnline())
	_, owned := key.KeyOwner()
	assert.False(t, owned)
}
