package tufmeta

import (
	"fmt"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/set"
)

// RootMetadata is the schema of the root role: the trust anchor naming which
// keys sign root itself and which keys sign the top-level targets role.
type RootMetadata struct {
	Common
	Keys  map[string]*Key     `json:"keys"`
	Roles map[string]RoleKeys `json:"roles"`
}

// NewRootMetadata returns an empty, version-0 RootMetadata. The caller bumps
// it to version 1 as part of the first signing event.
func NewRootMetadata() *RootMetadata {
	return &RootMetadata{
		Common: Common{Type: RoleRoot},
		Keys:   map[string]*Key{},
		Roles:  map[string]RoleKeys{},
	}
}

// AddKey records key in the root metadata's key store. It does not by itself
// authorize the key for any role.
func (r *RootMetadata) AddKey(key *Key) {
	if r.Keys == nil {
		r.Keys = map[string]*Key{}
	}
	r.Keys[key.KeyID] = key
}

// AddRole associates a RoleKeys entry with roleName ("root" or "targets").
func (r *RootMetadata) AddRole(roleName string, role RoleKeys) {
	if r.Roles == nil {
		r.Roles = map[string]RoleKeys{}
	}
	r.Roles[roleName] = role
}

// RoleKeySet resolves the *Key objects authorized for roleName.
func (r *RootMetadata) RoleKeySet(roleName string) ([]*Key, int, error) {
	role, ok := r.Roles[roleName]
	if !ok {
		return nil, 0, fmt.Errorf("%w: root metadata has no role %q", errkind.MalformedMetadata, roleName)
	}
	keys := make([]*Key, 0, role.KeyIDs.Len())
	for _, keyID := range role.KeyIDs.Sorted() {
		key, ok := r.Keys[keyID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: root metadata role %q references unknown key %q", errkind.MalformedMetadata, roleName, keyID)
		}
		keys = append(keys, key)
	}
	return keys, role.Threshold, nil
}

// Validate checks the §3 invariants that apply to root metadata in
// isolation (per-role threshold/key-set shape, and the online/offline
// purity of the snapshot and timestamp key sets when present).
func (r *RootMetadata) Validate() error {
	for name, role := range r.Roles {
		if err := role.Validate(); err != nil {
			return fmt.Errorf("role %q: %w", name, err)
		}
		for _, keyID := range role.KeyIDs.Sorted() {
			key, ok := r.Keys[keyID]
			if !ok {
				return fmt.Errorf("%w: role %q references unknown key %q", errkind.MalformedMetadata, name, keyID)
			}
			if (name == RoleSnapshot || name == RoleTimestamp) && !key.IsOnline() {
				return fmt.Errorf("%w: %q may only be signed by online keys, key %q is offline", errkind.InvariantViolation, name, keyID)
			}
		}
	}
	return nil
}

// AddRootKey authorizes key for the root role itself, creating the role
// entry with threshold 1 if this is the first root key.
func (r *RootMetadata) AddRootKey(key *Key) error {
	if key == nil {
		return fmt.Errorf("%w: nil root key", errkind.MalformedMetadata)
	}
	r.AddKey(key)
	role, ok := r.Roles[RoleRoot]
	if !ok {
		r.AddRole(RoleRoot, RoleKeys{KeyIDs: set.FromItems(key.KeyID), Threshold: 1})
		return nil
	}
	role.KeyIDs.Add(key.KeyID)
	r.Roles[RoleRoot] = role
	return nil
}

// AddTargetsKey authorizes key for the top-level targets role.
func (r *RootMetadata) AddTargetsKey(key *Key) error {
	if key == nil {
		return fmt.Errorf("%w: nil targets key", errkind.MalformedMetadata)
	}
	r.AddKey(key)
	role, ok := r.Roles[RoleTargets]
	if !ok {
		r.AddRole(RoleTargets, RoleKeys{KeyIDs: set.FromItems(key.KeyID), Threshold: 1})
		return nil
	}
	role.KeyIDs.Add(key.KeyID)
	r.Roles[RoleTargets] = role
	return nil
}

// UpdateThreshold sets the threshold for roleName ("root" or "targets"),
// refusing to set a threshold the current key set cannot meet.
func (r *RootMetadata) UpdateThreshold(roleName string, threshold int) error {
	role, ok := r.Roles[roleName]
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.MalformedMetadata, roleName)
	}
	if role.KeyIDs.Len() < threshold {
		return fmt.Errorf("%w: key set of size %d cannot meet threshold %d", errkind.InvariantViolation, role.KeyIDs.Len(), threshold)
	}
	role.Threshold = threshold
	r.Roles[roleName] = role
	return nil
}
