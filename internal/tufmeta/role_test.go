package tufmeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jku/repository-playground/internal/set"
)

func TestRoleKeysValidate(t *testing.T) {
	cases := []struct {
		name    string
		keys    RoleKeys
		wantErr bool
	}{
		{"ok", RoleKeys{KeyIDs: set.FromItems("a", "b"), Threshold: 1}, false},
		{"empty key set", RoleKeys{KeyIDs: set.New[string](), Threshold: 1}, true},
		{"zero threshold", RoleKeys{KeyIDs: set.FromItems("a"), Threshold: 0}, true},
		{"threshold exceeds keys", RoleKeys{KeyIDs: set.FromItems("a"), Threshold: 2}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.keys.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCommonBump(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Common{Version: 1, Expires: now.AddDate(0, 0, -5)}
	c.SetExpiryPeriodDays(10)

	c.Bump(now)

	assert.Equal(t, 2, c.Version)
	assert.True(t, c.Expires.After(now))
	assert.Equal(t, now.AddDate(0, 0, 10), c.Expires)
}

func TestCommonBumpUsesLaterOfNowAndPreviousExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 30)
	c := &Common{Version: 1, Expires: future}
	c.SetExpiryPeriodDays(10)

	c.Bump(now)

	assert.Equal(t, future.AddDate(0, 0, 10), c.Expires)
}

func TestCommonNeedsBump(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Common{Expires: now.AddDate(0, 0, 3)}
	c.SetSigningPeriodDays(4)
	assert.True(t, c.NeedsBump(now))

	c2 := &Common{Expires: now.AddDate(0, 0, 10)}
	c2.SetSigningPeriodDays(4)
	assert.False(t, c2.NeedsBump(now))
}

func TestCommonInvites(t *testing.T) {
	c := &Common{}
	assert.Empty(t, c.Invites())

	c.AddInvite("targets/team-a", "bob")
	assert.Equal(t, []string{"bob"}, c.Invites()["targets/team-a"])

	c.AddInvite("targets/team-a", "carol")
	assert.ElementsMatch(t, []string{"bob", "carol"}, c.Invites()["targets/team-a"])

	c.ClearInvite("targets/team-a", "bob")
	assert.Equal(t, []string{"carol"}, c.Invites()["targets/team-a"])

	c.ClearInvite("targets/team-a", "carol")
	_, stillPresent := c.Invites()["targets/team-a"]
	assert.False(t, stillPresent)
}
