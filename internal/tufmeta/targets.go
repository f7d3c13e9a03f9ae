package tufmeta

import (
	"fmt"

	"github.com/danwakefield/fnmatch"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/set"
)

// TargetFileInfo records the length and hashes of one target file, as listed
// in a targets role's signed payload.
type TargetFileInfo struct {
	Length int64             `json:"length"`
	Hashes map[string]string `json:"hashes"`
}

// TargetsMetadata is the schema shared by the top-level targets role and
// every delegated targets/<name> role.
type TargetsMetadata struct {
	Common
	Targets     map[string]TargetFileInfo `json:"targets"`
	Delegations *Delegations              `json:"delegations,omitempty"`
}

// NewTargetsMetadata returns an empty, version-0 TargetsMetadata.
func NewTargetsMetadata() *TargetsMetadata {
	return &TargetsMetadata{
		Common:      Common{Type: RoleTargets},
		Targets:     map[string]TargetFileInfo{},
		Delegations: &Delegations{},
	}
}

// Delegations is the set of keys and delegation rules a targets role uses to
// authorize delegated targets/<name> roles.
type Delegations struct {
	Keys  map[string]*Key `json:"keys"`
	Roles []Delegation    `json:"roles"`
}

// Delegation is a single delegation rule: the full tuple from spec.md §3
// (role name, key set, threshold, expiry-period, signing-period) plus the
// path patterns it is scoped to. Invites for this delegation's role live on
// the delegating role's Common.Invites(), keyed by Name.
type Delegation struct {
	Name              string   `json:"name"`
	Paths             []string `json:"paths"`
	Terminating       bool     `json:"terminating"`
	RoleKeys          `json:"role"`
	ExpiryPeriodDays  int `json:"expiry_period_days"`
	SigningPeriodDays int `json:"signing_period_days"`
}

// Matches reports whether target matches any of the delegation's path
// patterns.
func (d *Delegation) Matches(target string) bool {
	for _, pattern := range d.Paths {
		if fnmatch.Match(pattern, target, 0) {
			return true
		}
	}
	return false
}

// Validate checks a delegation's shape against the §3 invariants (threshold
// bounds, non-empty key set, path patterns non-empty).
func (d *Delegation) Validate() error {
	if err := d.RoleKeys.Validate(); err != nil {
		return fmt.Errorf("delegation %q: %w", d.Name, err)
	}
	if len(d.Paths) == 0 {
		return fmt.Errorf("%w: delegation %q has no path patterns", errkind.InvariantViolation, d.Name)
	}
	return nil
}

// AddKey records key in the delegations' key store.
func (d *Delegations) AddKey(key *Key) {
	if d.Keys == nil {
		d.Keys = map[string]*Key{}
	}
	d.Keys[key.KeyID] = key
}

// Find returns the delegation named ruleName, if any.
func (d *Delegations) Find(ruleName string) (*Delegation, bool) {
	for i := range d.Roles {
		if d.Roles[i].Name == ruleName {
			return &d.Roles[i], true
		}
	}
	return nil, false
}

// AddDelegation appends a new delegation rule authorizing authorizedKeys (at
// the given threshold) to sign for rulePatterns.
func (t *TargetsMetadata) AddDelegation(ruleName string, authorizedKeys []*Key, rulePatterns []string, threshold, expiryPeriodDays, signingPeriodDays int) error {
	if t.Delegations == nil {
		t.Delegations = &Delegations{}
	}
	if _, exists := t.Delegations.Find(ruleName); exists {
		return fmt.Errorf("%w: delegation %q already exists", errkind.InvariantViolation, ruleName)
	}

	keyIDs := set.New[string]()
	for _, key := range authorizedKeys {
		t.Delegations.AddKey(key)
		keyIDs.Add(key.KeyID)
	}

	delegation := Delegation{
		Name:              ruleName,
		Paths:             rulePatterns,
		RoleKeys:          RoleKeys{KeyIDs: keyIDs, Threshold: threshold},
		ExpiryPeriodDays:  expiryPeriodDays,
		SigningPeriodDays: signingPeriodDays,
	}
	if err := delegation.Validate(); err != nil {
		return err
	}

	t.Delegations.Roles = append(t.Delegations.Roles, delegation)
	return nil
}

// UpdateDelegation replaces the key set, threshold, and path patterns of an
// existing delegation rule.
func (t *TargetsMetadata) UpdateDelegation(ruleName string, authorizedKeys []*Key, rulePatterns []string, threshold int) error {
	delegation, exists := t.Delegations.Find(ruleName)
	if !exists {
		return fmt.Errorf("%w: no delegation named %q", errkind.InvariantViolation, ruleName)
	}

	keyIDs := set.New[string]()
	for _, key := range authorizedKeys {
		t.Delegations.AddKey(key)
		keyIDs.Add(key.KeyID)
	}

	delegation.Paths = rulePatterns
	delegation.RoleKeys = RoleKeys{KeyIDs: keyIDs, Threshold: threshold}
	return delegation.Validate()
}

// RemoveDelegation deletes the delegation rule named ruleName. The caller is
// responsible for also removing the corresponding targets/<name> role file;
// the delta analyzer flags a removal without a matching delegation drop as
// orphaned_removal (spec.md §4.C).
func (t *TargetsMetadata) RemoveDelegation(ruleName string) {
	if t.Delegations == nil {
		return
	}
	kept := make([]Delegation, 0, len(t.Delegations.Roles))
	for _, delegation := range t.Delegations.Roles {
		if delegation.Name != ruleName {
			kept = append(kept, delegation)
		}
	}
	t.Delegations.Roles = kept
}

// DelegationKeySet resolves the *Key objects authorized for a delegation.
func (t *TargetsMetadata) DelegationKeySet(ruleName string) ([]*Key, int, error) {
	delegation, exists := t.Delegations.Find(ruleName)
	if !exists {
		return nil, 0, fmt.Errorf("%w: no delegation named %q", errkind.MalformedMetadata, ruleName)
	}
	keys := make([]*Key, 0, delegation.KeyIDs.Len())
	for _, keyID := range delegation.KeyIDs.Sorted() {
		key, ok := t.Delegations.Keys[keyID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: delegation %q references unknown key %q", errkind.MalformedMetadata, ruleName, keyID)
		}
		keys = append(keys, key)
	}
	return keys, delegation.Threshold, nil
}

// ValidateTargetFiles checks that every listed target is present in
// fileHashes with a matching sha256 digest (when the entry lists one) and
// that no on-disk file is missing an entry. Delegations are not consulted.
// fileHashes maps on-disk path -> sha256 hex digest.
func (t *TargetsMetadata) ValidateTargetFiles(fileHashes map[string]string) error {
	for path, info := range t.Targets {
		digest, onDisk := fileHashes[path]
		if !onDisk {
			return fmt.Errorf("%w: target %q listed but missing from disk", errkind.InvariantViolation, path)
		}
		if want, ok := info.Hashes["sha256"]; ok && want != digest {
			return fmt.Errorf("%w: target %q hash mismatch", errkind.InvariantViolation, path)
		}
	}
	for path := range fileHashes {
		if _, listed := t.Targets[path]; !listed {
			return fmt.Errorf("%w: file %q on disk has no targets entry", errkind.InvariantViolation, path)
		}
	}
	return nil
}
