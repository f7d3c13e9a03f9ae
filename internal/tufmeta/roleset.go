package tufmeta

import (
	"encoding/json"
	"fmt"
)

// SignedRole pairs one role's decoded payload with the signatures collected
// for it so far. Payload is one of *RootMetadata, *TargetsMetadata,
// *SnapshotMetadata, or *TimestampMetadata.
type SignedRole struct {
	Name       string
	Payload    any
	Signatures []Signature
}

// CanonicalBytes returns the canonical bytes of the role's signed payload,
// i.e. exactly what every signature in Signatures is expected to cover.
func (s *SignedRole) CanonicalBytes() ([]byte, error) {
	return CanonicalBytes(s.Payload)
}

// signedRoleEnvelope is the on-the-wire TUF shape every role file uses:
// the signed payload nested under "signed", alongside the signatures over
// it. SignedRole's Name and Payload-type fields are never serialized --
// Name is implied by the file path, and the payload's Go type is implied by
// Name on decode.
type signedRoleEnvelope struct {
	Signed     json.RawMessage `json:"signed"`
	Signatures []Signature     `json:"signatures"`
}

// MarshalJSON emits the standard TUF envelope {"signed": ..., "signatures":
// ...} rather than SignedRole's internal field layout.
func (s *SignedRole) MarshalJSON() ([]byte, error) {
	signed, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(signedRoleEnvelope{Signed: signed, Signatures: s.Signatures})
}

// UnmarshalJSON parses the standard TUF envelope, decoding "signed" into the
// concrete payload type implied by s.Name -- callers must set Name before
// unmarshaling into a SignedRole, e.g. json.Unmarshal(data,
// &SignedRole{Name: name}).
func (s *SignedRole) UnmarshalJSON(data []byte) error {
	var envelope signedRoleEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	payload, err := DecodePayload(s.Name, envelope.Signed)
	if err != nil {
		return err
	}
	s.Payload = payload
	s.Signatures = envelope.Signatures
	return nil
}

// DecodePayload unmarshals a role's "signed" bytes into the concrete
// payload type implied by roleName: RootMetadata for "root", SnapshotMetadata
// for "snapshot", TimestampMetadata for "timestamp", and TargetsMetadata for
// "targets" or any delegated "targets/<name>" role.
func DecodePayload(roleName string, signed []byte) (any, error) {
	switch roleName {
	case RoleRoot:
		root := NewRootMetadata()
		if err := json.Unmarshal(signed, root); err != nil {
			return nil, err
		}
		return root, nil
	case RoleSnapshot:
		snap := NewSnapshotMetadata()
		if err := json.Unmarshal(signed, snap); err != nil {
			return nil, err
		}
		return snap, nil
	case RoleTimestamp:
		ts := NewTimestampMetadata()
		if err := json.Unmarshal(signed, ts); err != nil {
			return nil, err
		}
		return ts, nil
	default: // targets or targets/<name>
		targets := NewTargetsMetadata()
		if err := json.Unmarshal(signed, targets); err != nil {
			return nil, err
		}
		return targets, nil
	}
}

// Root type-asserts the payload as root metadata.
func (s *SignedRole) Root() (*RootMetadata, bool) {
	r, ok := s.Payload.(*RootMetadata)
	return r, ok
}

// Targets type-asserts the payload as a targets (or delegated targets)
// metadata.
func (s *SignedRole) Targets() (*TargetsMetadata, bool) {
	t, ok := s.Payload.(*TargetsMetadata)
	return t, ok
}

// Snapshot type-asserts the payload as snapshot metadata.
func (s *SignedRole) Snapshot() (*SnapshotMetadata, bool) {
	sn, ok := s.Payload.(*SnapshotMetadata)
	return sn, ok
}

// Timestamp type-asserts the payload as timestamp metadata.
func (s *SignedRole) Timestamp() (*TimestampMetadata, bool) {
	ts, ok := s.Payload.(*TimestampMetadata)
	return ts, ok
}

// IsDelegatedTargets reports whether the role is a targets/<name> role
// rather than root, the top-level targets, snapshot, or timestamp.
func (s *SignedRole) IsDelegatedTargets() bool {
	_, isTargets := s.Targets()
	return isTargets && s.Name != RoleTargets
}

// RoleSet is the in-memory TUF role graph for one repository state: every
// role file keyed by its name ("root", "targets", "snapshot", "timestamp",
// "targets/<name>").
type RoleSet map[string]*SignedRole

// Root returns the root role, failing if it is absent or malformed -- root
// must exist in any valid RoleSet.
func (rs RoleSet) Root() (*RootMetadata, error) {
	entry, ok := rs[RoleRoot]
	if !ok {
		return nil, fmt.Errorf("roleset has no root metadata")
	}
	root, ok := entry.Root()
	if !ok {
		return nil, fmt.Errorf("roleset's root entry is not RootMetadata")
	}
	return root, nil
}

// DelegatedBy returns the names of every targets/<name> role whose
// delegation appears in delegatingRoleName's Delegations (top-level targets,
// or another delegated targets role).
func (rs RoleSet) DelegatedBy(delegatingRoleName string) ([]string, error) {
	entry, ok := rs[delegatingRoleName]
	if !ok {
		return nil, fmt.Errorf("roleset has no role named %q", delegatingRoleName)
	}
	delegating, ok := entry.Targets()
	if !ok {
		return nil, fmt.Errorf("role %q is not a targets role and cannot delegate", delegatingRoleName)
	}
	if delegating.Delegations == nil {
		return nil, nil
	}
	names := make([]string, 0, len(delegating.Delegations.Roles))
	for _, d := range delegating.Delegations.Roles {
		if d.Name == AllowRuleName {
			continue
		}
		names = append(names, d.Name)
	}
	return names, nil
}

// AllowRuleName names a synthetic terminating delegation, matching
// "everything else is unauthorized". Code that walks a role's delegations
// skips one with this name; nothing in this module adds it to a role.
const AllowRuleName = "playground-allow-rule"
