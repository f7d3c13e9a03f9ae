// Package delta implements the delta analyzer (spec.md §4.C): diffing two
// RoleSets, base and event, into a structured ChangeSet the signing-event
// engine can evaluate without re-deriving role-by-role comparisons itself.
package delta

import (
	"fmt"
	"time"

	"github.com/jku/repository-playground/internal/set"
	"github.com/jku/repository-playground/internal/tufmeta"
)

// Status classifies one role's change between base and event.
type Status string

const (
	Unchanged      Status = "unchanged"
	ContentChanged Status = "content_changed"
	Added          Status = "added"
	Removed        Status = "removed"
)

// ContentChange further classifies a content_changed role. A role may match
// more than one of these -- e.g. a delegation edit can arrive alongside an
// expiry bump -- so RoleChange carries them as independent booleans rather
// than a single enum.
type ContentChange struct {
	DelegationChanged bool
	DelegationDiff    *DelegationDiff
	TargetListChanged bool
	TargetListDiff    *TargetListDiff
	ExpiryBumped      bool
	VersionBumpedOnly bool
}

// DelegationDiff records which delegation rules were added, removed, or
// modified between base and event.
type DelegationDiff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// TargetListDiff records which target paths were added, removed, or had
// their hash/length entry modified.
type TargetListDiff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// RoleChange is one role's entry in a ChangeSet.
type RoleChange struct {
	Name   string
	Status Status

	// Populated only when Status == ContentChanged.
	Content ContentChange

	// OrphanedRemoval is set when Status == Removed but the delegating
	// role's new version did not also drop the delegation (spec.md §4.C).
	OrphanedRemoval bool

	// IllegalOnlineChange is set when the event changed a snapshot/timestamp
	// role outside the Online-Signing engine, and also when, outside that
	// engine, it bumped an offline role's version with no other content or
	// expiry change (see CalledByOnlineEngine) (spec.md §4.C).
	IllegalOnlineChange bool

	// OpenObligations is not populated by Analyze and is always nil; the
	// signing-event engine (internal/signingevent) works out which
	// delegating keys have not yet signed when it verifies signatures.
	OpenObligations *set.Set[string]
}

// ChangeSet is the delta analyzer's output: one RoleChange per role present
// in base or event, the set of newly introduced invites, and whether the
// event is the trivial no-op case.
type ChangeSet struct {
	Roles      map[string]*RoleChange
	NewInvites map[string][]string // role name -> newly invited owner handles
	Empty      bool
}

// CalledByOnlineEngine is passed to Analyze so the "version bump with no
// content change is legal only for online roles, or when the caller is the
// Online-Signing engine" rule (spec.md §4.C) can be applied: a human-edited
// event branch that only bumps an offline role's version is illegal, but
// the Online-Signing engine itself is allowed to do exactly that.
type CalledByOnlineEngine bool

// Analyze computes the ChangeSet between base and event.
func Analyze(base, event tufmeta.RoleSet, calledByOnlineEngine CalledByOnlineEngine) (*ChangeSet, error) {
	cs := &ChangeSet{
		Roles:      map[string]*RoleChange{},
		NewInvites: map[string][]string{},
	}

	names := set.New[string]()
	for name := range base {
		names.Add(name)
	}
	for name := range event {
		names.Add(name)
	}

	anyChange := false
	for _, name := range names.Sorted() {
		baseRole, inBase := base[name]
		eventRole, inEvent := event[name]

		change := &RoleChange{Name: name}

		switch {
		case !inBase && inEvent:
			change.Status = Added
			anyChange = true
		case inBase && !inEvent:
			change.Status = Removed
			change.OrphanedRemoval = isOrphanedRemoval(base, event, name)
			anyChange = true
		default:
			status, content, err := compareRole(baseRole, eventRole)
			if err != nil {
				return nil, err
			}
			change.Status = status
			change.Content = content
			if status == ContentChanged {
				anyChange = true
				change.IllegalOnlineChange = isOnlineRole(name) && !bool(calledByOnlineEngine)
				if content.VersionBumpedOnly && !content.ExpiryBumped && !isOnlineRole(name) && !bool(calledByOnlineEngine) {
					change.IllegalOnlineChange = true
				}
			}
		}

		cs.Roles[name] = change
	}

	collectNewInvites(base, event, cs)
	cs.Empty = !anyChange

	return cs, nil
}

func isOnlineRole(name string) bool {
	return name == tufmeta.RoleSnapshot || name == tufmeta.RoleTimestamp
}

// isOrphanedRemoval reports whether name's removal from event is NOT
// accompanied by the delegating role also dropping the delegation
// (spec.md §4.C).
func isOrphanedRemoval(base, event tufmeta.RoleSet, name string) bool {
	if name == tufmeta.RoleRoot || name == tufmeta.RoleTargets {
		return false // these aren't removable via delegation
	}

	for _, delegating := range event {
		targets, ok := delegating.Targets()
		if !ok || targets.Delegations == nil {
			continue
		}
		if _, stillDelegated := targets.Delegations.Find(name); stillDelegated {
			// It's still delegated somewhere in event: the removal of the
			// role file wasn't matched by a delegation drop.
			return true
		}
	}
	return false
}

func compareRole(baseRole, eventRole *tufmeta.SignedRole) (Status, ContentChange, error) {
	baseBytes, err := tufmeta.CanonicalBytes(payloadWithoutVersion(baseRole.Payload))
	if err != nil {
		return Unchanged, ContentChange{}, err
	}
	eventBytes, err := tufmeta.CanonicalBytes(payloadWithoutVersion(eventRole.Payload))
	if err != nil {
		return Unchanged, ContentChange{}, err
	}

	baseFull, err := tufmeta.CanonicalBytes(baseRole.Payload)
	if err != nil {
		return Unchanged, ContentChange{}, err
	}
	eventFull, err := tufmeta.CanonicalBytes(eventRole.Payload)
	if err != nil {
		return Unchanged, ContentChange{}, err
	}

	if string(baseFull) == string(eventFull) {
		return Unchanged, ContentChange{}, nil
	}

	content := ContentChange{}
	if string(baseBytes) == string(eventBytes) {
		// Only version and/or expires changed.
		content.VersionBumpedOnly = true
	}

	baseCommon, err1 := commonOf(baseRole.Payload)
	eventCommon, err2 := commonOf(eventRole.Payload)
	if err1 == nil && err2 == nil && !eventCommon.Expires.Equal(baseCommon.Expires) {
		content.ExpiryBumped = true
	}

	if baseTargets, ok := baseRole.Targets(); ok {
		if eventTargets, ok2 := eventRole.Targets(); ok2 {
			delegationDiff := diffDelegations(baseTargets, eventTargets)
			if delegationDiff != nil {
				content.DelegationChanged = true
				content.DelegationDiff = delegationDiff
				content.VersionBumpedOnly = false
			}
			targetDiff := diffTargetLists(baseTargets, eventTargets)
			if targetDiff != nil {
				content.TargetListChanged = true
				content.TargetListDiff = targetDiff
				content.VersionBumpedOnly = false
			}
		}
	}

	return ContentChanged, content, nil
}

// payloadWithoutVersion returns a shallow copy of payload with Version and
// Expires zeroed, so two payloads can be compared for "is anything other
// than the version bump different".
func payloadWithoutVersion(payload any) any {
	switch p := payload.(type) {
	case *tufmeta.RootMetadata:
		cp := *p
		cp.Version = 0
		cp.Expires = time.Time{}
		return &cp
	case *tufmeta.TargetsMetadata:
		cp := *p
		cp.Version = 0
		cp.Expires = time.Time{}
		return &cp
	case *tufmeta.SnapshotMetadata:
		cp := *p
		cp.Version = 0
		cp.Expires = time.Time{}
		return &cp
	case *tufmeta.TimestampMetadata:
		cp := *p
		cp.Version = 0
		cp.Expires = time.Time{}
		return &cp
	default:
		return payload
	}
}

func commonOf(payload any) (*tufmeta.Common, error) {
	switch p := payload.(type) {
	case *tufmeta.RootMetadata:
		return &p.Common, nil
	case *tufmeta.TargetsMetadata:
		return &p.Common, nil
	case *tufmeta.SnapshotMetadata:
		return &p.Common, nil
	case *tufmeta.TimestampMetadata:
		return &p.Common, nil
	default:
		return nil, fmt.Errorf("unrecognized role payload type %T", payload)
	}
}

func diffDelegations(base, event *tufmeta.TargetsMetadata) *DelegationDiff {
	if base.Delegations == nil && event.Delegations == nil {
		return nil
	}

	baseNames, eventNames := set.New[string](), set.New[string]()
	if base.Delegations != nil {
		for _, d := range base.Delegations.Roles {
			baseNames.Add(d.Name)
		}
	}
	if event.Delegations != nil {
		for _, d := range event.Delegations.Roles {
			eventNames.Add(d.Name)
		}
	}

	diff := &DelegationDiff{}
	for _, name := range eventNames.Minus(baseNames).Sorted() {
		diff.Added = append(diff.Added, name)
	}
	for _, name := range baseNames.Minus(eventNames).Sorted() {
		diff.Removed = append(diff.Removed, name)
	}
	for _, name := range baseNames.Intersection(eventNames).Sorted() {
		baseDelegation, _ := base.Delegations.Find(name)
		eventDelegation, _ := event.Delegations.Find(name)
		baseBytes, _ := tufmeta.CanonicalBytes(baseDelegation)
		eventBytes, _ := tufmeta.CanonicalBytes(eventDelegation)
		if string(baseBytes) != string(eventBytes) {
			diff.Modified = append(diff.Modified, name)
		}
	}

	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Modified) == 0 {
		return nil
	}
	return diff
}

func diffTargetLists(base, event *tufmeta.TargetsMetadata) *TargetListDiff {
	diff := &TargetListDiff{}
	for path, eventInfo := range event.Targets {
		baseInfo, existed := base.Targets[path]
		if !existed {
			diff.Added = append(diff.Added, path)
			continue
		}
		if baseInfo.Length != eventInfo.Length || !hashesEqual(baseInfo.Hashes, eventInfo.Hashes) {
			diff.Modified = append(diff.Modified, path)
		}
	}
	for path := range base.Targets {
		if _, stillPresent := event.Targets[path]; !stillPresent {
			diff.Removed = append(diff.Removed, path)
		}
	}

	if len(diff.Added) == 0 && len(diff.Removed) == 0 && len(diff.Modified) == 0 {
		return nil
	}
	return diff
}

func hashesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// collectNewInvites finds every (role, owner) invite present in event but
// absent from base.
func collectNewInvites(base, event tufmeta.RoleSet, cs *ChangeSet) {
	for name, eventRole := range event {
		common, err := commonOf(eventRole.Payload)
		if err != nil {
			continue
		}
		eventInvites := common.Invites()
		if len(eventInvites) == 0 {
			continue
		}

		var baseInvites map[string][]string
		if baseRole, ok := base[name]; ok {
			if baseCommon, err := commonOf(baseRole.Payload); err == nil {
				baseInvites = baseCommon.Invites()
			}
		}

		for delegatedRole, owners := range eventInvites {
			existing := set.FromItems(baseInvites[delegatedRole]...)
			for _, owner := range owners {
				if !existing.Has(owner) {
					cs.NewInvites[delegatedRole] = append(cs.NewInvites[delegatedRole], owner)
				}
			}
		}
	}
}
