package tufmeta

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/set"
)

// Well-known role names. Delegated targets roles use an arbitrary
// "targets/<name>" string instead of one of these constants.
const (
	RoleRoot      = "root"
	RoleTargets   = "targets"
	RoleSnapshot  = "snapshot"
	RoleTimestamp = "timestamp"
)

// Custom field names recognized on a role's own signed payload.
const (
	CustomExpiryPeriod  = "x-playground-expiry-period"  // days, int
	CustomSigningPeriod = "x-playground-signing-period"  // days, int
	CustomInvites       = "x-playground-invites"         // map[string][]string
)

// RoleKeys records the keys authorized for a role and the threshold of
// distinct signatures required from them.
type RoleKeys struct {
	KeyIDs    *set.Set[string] `json:"keyids"`
	Threshold int              `json:"threshold"`
}

// Validate enforces "threshold <= |key set|; threshold >= 1; key set
// non-empty" (spec.md §3 invariants).
func (r RoleKeys) Validate() error {
	if r.KeyIDs == nil || r.KeyIDs.Len() == 0 {
		return fmt.Errorf("%w: role has an empty key set", errkind.InvariantViolation)
	}
	if r.Threshold < 1 {
		return fmt.Errorf("%w: threshold must be at least 1", errkind.InvariantViolation)
	}
	if r.Threshold > r.KeyIDs.Len() {
		return fmt.Errorf("%w: threshold %d exceeds key set size %d", errkind.InvariantViolation, r.Threshold, r.KeyIDs.Len())
	}
	return nil
}

// Common carries the fields shared by every role's signed payload: its type
// tag, version, expiry, and the two playground custom fields that drive the
// expiry/bump heuristic. Every concrete metadata type embeds Common.
type Common struct {
	Type    string                     `json:"type"`
	Version int                        `json:"version"`
	Expires time.Time                  `json:"expires"`
	Custom  map[string]json.RawMessage `json:"custom,omitempty"`
}

// ExpiryPeriodDays returns the role's x-playground-expiry-period, defaulting
// to 0 (no field present) when the role predates the heuristic.
func (c *Common) ExpiryPeriodDays() int {
	raw, ok := c.Custom[CustomExpiryPeriod]
	if !ok {
		return 0
	}
	var days int
	if err := json.Unmarshal(raw, &days); err != nil {
		return 0
	}
	return days
}

// SetExpiryPeriodDays sets x-playground-expiry-period.
func (c *Common) SetExpiryPeriodDays(days int) {
	c.setIntCustom(CustomExpiryPeriod, days)
}

// SigningPeriodDays returns the role's x-playground-signing-period.
func (c *Common) SigningPeriodDays() int {
	raw, ok := c.Custom[CustomSigningPeriod]
	if !ok {
		return 0
	}
	var days int
	if err := json.Unmarshal(raw, &days); err != nil {
		return 0
	}
	return days
}

// SetSigningPeriodDays sets x-playground-signing-period.
func (c *Common) SetSigningPeriodDays(days int) {
	c.setIntCustom(CustomSigningPeriod, days)
}

func (c *Common) setIntCustom(key string, value int) {
	raw, _ := json.Marshal(value) //nolint:errcheck // int marshaling never fails
	if c.Custom == nil {
		c.Custom = map[string]json.RawMessage{}
	}
	c.Custom[key] = raw
}

// NeedsBump reports whether now has crossed into the role's signing period,
// i.e. `now + signing_period >= expiry` (spec.md §4.B).
func (c *Common) NeedsBump(now time.Time) bool {
	signingPeriod := time.Duration(c.SigningPeriodDays()) * 24 * time.Hour
	return !now.Add(signingPeriod).Before(c.Expires)
}

// Bump advances Version by one and sets Expires to
// `max(now, previous_expiry) + expiry_period` (spec.md §3 invariants).
func (c *Common) Bump(now time.Time) {
	base := now
	if c.Expires.After(base) {
		base = c.Expires
	}
	c.Version++
	c.Expires = base.Add(time.Duration(c.ExpiryPeriodDays()) * 24 * time.Hour)
}

// Invites returns the delegating role's pending invites: delegated role name
// -> owner handles awaiting acceptance.
func (c *Common) Invites() map[string][]string {
	raw, ok := c.Custom[CustomInvites]
	if !ok {
		return map[string][]string{}
	}
	invites := map[string][]string{}
	if err := json.Unmarshal(raw, &invites); err != nil {
		return map[string][]string{}
	}
	return invites
}

// AddInvite records that owner has been invited to accept a key for
// roleName.
func (c *Common) AddInvite(roleName, owner string) {
	invites := c.Invites()
	invites[roleName] = append(invites[roleName], owner)
	c.setInvites(invites)
}

// ClearInvite removes owner's pending invite for roleName, e.g. once they
// accept by signing for the first time.
func (c *Common) ClearInvite(roleName, owner string) {
	invites := c.Invites()
	owners := invites[roleName]
	remaining := make([]string, 0, len(owners))
	for _, o := range owners {
		if o != owner {
			remaining = append(remaining, o)
		}
	}
	if len(remaining) == 0 {
		delete(invites, roleName)
	} else {
		invites[roleName] = remaining
	}
	c.setInvites(invites)
}

func (c *Common) setInvites(invites map[string][]string) {
	raw, _ := json.Marshal(invites) //nolint:errcheck // map[string][]string marshaling never fails
	if c.Custom == nil {
		c.Custom = map[string]json.RawMessage{}
	}
	c.Custom[CustomInvites] = raw
}
