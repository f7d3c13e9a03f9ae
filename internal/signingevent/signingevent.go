// Package signingevent implements the signing-event engine (spec.md §4.D):
// given a baseline RoleSet and an event RoleSet, it computes a verdict and a
// human-readable report. The engine never mutates either RoleSet; it is a
// pure function of (base, event, targetFileHashes, now).
package signingevent

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jku/repository-playground/internal/delta"
	"github.com/jku/repository-playground/internal/tufmeta"
)

// Reason is one of the closed set of hard invalidity reasons (spec.md §4.D).
type Reason string

const (
	ReasonIllegalOnlineChange Reason = "illegal_online_change"
	ReasonUnmatchedTargets    Reason = "unmatched_targets"
	ReasonExpiryOutOfRange    Reason = "expiry_out_of_range"
	ReasonDelegationStructure Reason = "delegation_structure"
	ReasonVersionRegression   Reason = "version_regression"
	ReasonOrphanedRemoval     Reason = "orphaned_removal"
	ReasonBadSignature        Reason = "bad_signature"
)

// VerdictKind is the top-level result of evaluating a signing event.
type VerdictKind string

const (
	VerdictEmpty       VerdictKind = "empty"
	VerdictInvalid     VerdictKind = "invalid"
	VerdictIncomplete  VerdictKind = "incomplete"
	VerdictPublishable VerdictKind = "publishable"
)

// RoleReasons pairs a role name with every invalidity reason that applies to
// it; spec.md §4.D: "when multiple invalidity reasons apply to one role, all
// are reported".
type RoleReasons struct {
	Role    string
	Reasons []Reason
}

// Obligation is the subset of a changed offline role's delegating key set
// that has not yet signed the event's version of that role, reported by
// owner handle where the key carries x-playground-keyowner.
type Obligation struct {
	Role          string
	PendingOwners []string
	PendingKeyIDs []string
	MissingKeyIDs []string // signatures present but referencing unknown keys
	InvalidKeyIDs []string // signatures present that failed verification
}

// Result is the signing-event engine's verdict plus everything needed to
// render a report.
type Result struct {
	Kind           VerdictKind
	InvalidReasons []RoleReasons
	Obligations    []Obligation
	NewInvites     map[string][]string
	ChangeSet      *delta.ChangeSet
}

// Evaluate computes the verdict for event against base. targetFileHashes
// maps on-disk target path -> sha256 hex digest, as read from the event
// branch's /targets tree by the caller (spec.md §4.D reason 2); it may be
// nil if the event makes no target-list changes.
func Evaluate(base, event tufmeta.RoleSet, verifier tufmeta.Verifier, targetFileHashes map[string]string, now time.Time) (*Result, error) {
	cs, err := delta.Analyze(base, event, false)
	if err != nil {
		return nil, err
	}

	if cs.Empty {
		return &Result{Kind: VerdictEmpty, ChangeSet: cs, NewInvites: cs.NewInvites}, nil
	}

	result := &Result{ChangeSet: cs, NewInvites: cs.NewInvites}

	// Root is evaluated first and short-circuits the rest on failure
	// (spec.md §4.D ordering rule).
	rootReasons, rootObligation, err := evaluateRole(tufmeta.RoleRoot, base, event, cs, verifier, targetFileHashes, now)
	if err != nil {
		return nil, err
	}
	if len(rootReasons) > 0 {
		result.Kind = VerdictInvalid
		result.InvalidReasons = []RoleReasons{{Role: tufmeta.RoleRoot, Reasons: rootReasons}}
		return result, nil
	}
	if rootObligation != nil {
		result.Obligations = append(result.Obligations, *rootObligation)
	}

	for _, name := range evaluationOrder(cs) {
		if name == tufmeta.RoleRoot {
			continue
		}
		reasons, obligation, err := evaluateRole(name, base, event, cs, verifier, targetFileHashes, now)
		if err != nil {
			return nil, err
		}
		if len(reasons) > 0 {
			result.InvalidReasons = append(result.InvalidReasons, RoleReasons{Role: name, Reasons: reasons})
		}
		if obligation != nil {
			result.Obligations = append(result.Obligations, *obligation)
		}
	}

	switch {
	case len(result.InvalidReasons) > 0:
		result.Kind = VerdictInvalid
	case len(result.Obligations) > 0 || len(result.NewInvites) > 0:
		result.Kind = VerdictIncomplete
	default:
		result.Kind = VerdictPublishable
	}
	return result, nil
}

// evaluationOrder returns every changed role name, ordered root -> targets ->
// delegated targets (alphabetically) -> snapshot -> timestamp.
func evaluationOrder(cs *delta.ChangeSet) []string {
	var targets, delegated, online []string
	for name, change := range cs.Roles {
		if change.Status == delta.Unchanged {
			continue
		}
		switch name {
		case tufmeta.RoleRoot:
			continue
		case tufmeta.RoleTargets:
			targets = append(targets, name)
		case tufmeta.RoleSnapshot, tufmeta.RoleTimestamp:
			online = append(online, name)
		default:
			delegated = append(delegated, name)
		}
	}
	sort.Strings(delegated)
	sort.Strings(online)
	ordered := append(targets, delegated...)
	return append(ordered, online...)
}

func evaluateRole(name string, base, event tufmeta.RoleSet, cs *delta.ChangeSet, verifier tufmeta.Verifier, targetFileHashes map[string]string, now time.Time) ([]Reason, *Obligation, error) {
	change, ok := cs.Roles[name]
	if !ok || change.Status == delta.Unchanged {
		return nil, nil, nil
	}

	var reasons []Reason

	if change.Status == delta.Removed {
		if change.OrphanedRemoval {
			reasons = append(reasons, ReasonOrphanedRemoval)
		}
		return reasons, nil, nil
	}

	if change.IllegalOnlineChange {
		reasons = append(reasons, ReasonIllegalOnlineChange)
	}

	eventRole, inEvent := event[name]
	if !inEvent {
		return reasons, nil, nil
	}

	if change.Status == delta.Added {
		// A freshly added role has nothing to regress against; it still
		// needs structural and signature evaluation below.
	} else if baseRole, inBase := base[name]; inBase {
		baseCommon, errB := commonOf(baseRole.Payload)
		eventCommon, errE := commonOf(eventRole.Payload)
		if errB == nil && errE == nil && eventCommon.Version <= baseCommon.Version {
			reasons = append(reasons, ReasonVersionRegression)
			// "no other analysis performed" on a version-regressed role
			// (spec.md §8 scenario S6).
			return reasons, nil, nil
		}
	}

	if change.Content.DelegationChanged {
		if delReasons := validateDelegationStructure(name, event); len(delReasons) > 0 {
			reasons = append(reasons, delReasons...)
		}
	}

	if change.Content.TargetListChanged && targetFileHashes != nil {
		if targets, ok := eventRole.Targets(); ok {
			if err := targets.ValidateTargetFiles(targetFileHashes); err != nil {
				reasons = append(reasons, ReasonUnmatchedTargets)
			}
		}
	}

	if change.Content.ExpiryBumped {
		if reason := checkExpiryPolicy(name, base, event, now); reason != "" {
			reasons = append(reasons, reason)
		}
	}

	keys, threshold, err := delegatorKeysFor(event, name)
	if err != nil {
		// Structural problems resolving the delegator already surface as
		// delegation_structure above for the delegating role; here it
		// just means we can't evaluate signatures.
		return reasons, nil, nil
	}

	canonical, err := eventRole.CanonicalBytes()
	if err != nil {
		return nil, nil, err
	}

	badSig, obligation, err := verifyRoleSignatures(name, verifier, canonical, eventRole.Signatures, keys, threshold)
	if err != nil {
		return nil, nil, err
	}
	if badSig {
		reasons = append(reasons, ReasonBadSignature)
	}

	return reasons, obligation, nil
}

func verifyRoleSignatures(roleName string, verifier tufmeta.Verifier, canonical []byte, sigs []tufmeta.Signature, keys []*tufmeta.Key, threshold int) (bool, *Obligation, error) {
	byID := make(map[string]*tufmeta.Key, len(keys))
	for _, k := range keys {
		byID[k.KeyID] = k
	}

	signed := map[string]bool{}
	var missing, invalid []string
	for _, sig := range sigs {
		key, ok := byID[sig.KeyID]
		if !ok {
			missing = append(missing, sig.KeyID)
			continue
		}
		ok, err := verifier.Verify(key, canonical, sig.Sig)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			invalid = append(invalid, sig.KeyID)
			continue
		}
		signed[key.KeyID] = true
	}

	var pendingOwners, pendingKeyIDs []string
	for _, k := range keys {
		if signed[k.KeyID] {
			continue
		}
		pendingKeyIDs = append(pendingKeyIDs, k.KeyID)
		if owner, ok := k.KeyOwner(); ok {
			pendingOwners = append(pendingOwners, owner)
		} else {
			pendingOwners = append(pendingOwners, k.KeyID)
		}
	}

	if len(signed) >= threshold && len(pendingKeyIDs) == 0 && len(invalid) == 0 {
		return false, nil, nil
	}
	if len(invalid) > 0 {
		return true, &Obligation{Role: roleName, PendingOwners: pendingOwners, PendingKeyIDs: pendingKeyIDs, MissingKeyIDs: missing, InvalidKeyIDs: invalid}, nil
	}
	if len(signed) >= threshold {
		return false, nil, nil
	}
	return false, &Obligation{Role: roleName, PendingOwners: pendingOwners, PendingKeyIDs: pendingKeyIDs, MissingKeyIDs: missing}, nil
}

// delegatorKeysFor resolves the key set and threshold that authorize
// roleName, always read from event: spec.md §4.D's tie-break "when an event
// modifies both the delegating role and the delegated role, the delegating
// role's new key set is used to evaluate the delegated role's signatures".
func delegatorKeysFor(event tufmeta.RoleSet, roleName string) ([]*tufmeta.Key, int, error) {
	switch roleName {
	case tufmeta.RoleRoot:
		root, err := event.Root()
		if err != nil {
			return nil, 0, err
		}
		return root.RoleKeySet(tufmeta.RoleRoot)
	case tufmeta.RoleTargets:
		root, err := event.Root()
		if err != nil {
			return nil, 0, err
		}
		return root.RoleKeySet(tufmeta.RoleTargets)
	case tufmeta.RoleSnapshot, tufmeta.RoleTimestamp:
		root, err := event.Root()
		if err != nil {
			return nil, 0, err
		}
		return root.RoleKeySet(roleName)
	default:
		for _, candidate := range event {
			delegating, ok := candidate.Targets()
			if !ok || delegating.Delegations == nil {
				continue
			}
			if _, found := delegating.Delegations.Find(roleName); found {
				return delegating.DelegationKeySet(roleName)
			}
		}
		return nil, 0, fmt.Errorf("no delegating role found for %q", roleName)
	}
}

func validateDelegationStructure(delegatingRoleName string, event tufmeta.RoleSet) []Reason {
	entry, ok := event[delegatingRoleName]
	if !ok {
		return nil
	}

	var reasons []Reason
	checkKeys := func(keys []*tufmeta.Key, threshold int, mustBeOffline bool) {
		if threshold < 1 || threshold > len(keys) || len(keys) == 0 {
			reasons = append(reasons, ReasonDelegationStructure)
		}
		for _, k := range keys {
			if mustBeOffline && k.IsOnline() {
				reasons = append(reasons, ReasonDelegationStructure)
			}
			if !mustBeOffline && !k.IsOnline() {
				reasons = append(reasons, ReasonDelegationStructure)
			}
		}
	}

	if root, ok := entry.Root(); ok {
		for name, role := range root.Roles {
			keys := make([]*tufmeta.Key, 0, role.KeyIDs.Len())
			for _, id := range role.KeyIDs.Sorted() {
				if k, ok := root.Keys[id]; ok {
					keys = append(keys, k)
				}
			}
			online := name == tufmeta.RoleSnapshot || name == tufmeta.RoleTimestamp
			checkKeys(keys, role.Threshold, !online)
		}
	}

	if targets, ok := entry.Targets(); ok && targets.Delegations != nil {
		for _, d := range targets.Delegations.Roles {
			if d.Name == tufmeta.AllowRuleName {
				continue
			}
			keys := make([]*tufmeta.Key, 0, d.KeyIDs.Len())
			for _, id := range d.KeyIDs.Sorted() {
				if k, ok := targets.Delegations.Keys[id]; ok {
					keys = append(keys, k)
				}
			}
			checkKeys(keys, d.Threshold, true)
		}
	}

	return dedupeReasons(reasons)
}

func dedupeReasons(reasons []Reason) []Reason {
	if len(reasons) <= 1 {
		return reasons
	}
	seen := map[Reason]bool{}
	out := reasons[:0]
	for _, r := range reasons {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// checkExpiryPolicy resolves SPEC_FULL.md open-question decision #1: a
// role's new expiry must be after now and equal max(now, previous_expiry) +
// expiry_period within a one-day tolerance, where expiry_period is read from
// the event's version of the role.
func checkExpiryPolicy(name string, base, event tufmeta.RoleSet, now time.Time) Reason {
	eventCommon, err := commonOf(event[name].Payload)
	if err != nil {
		return ""
	}
	if !eventCommon.Expires.After(now) {
		return ReasonExpiryOutOfRange
	}

	var previousExpiry time.Time
	if baseRole, ok := base[name]; ok {
		if baseCommon, err := commonOf(baseRole.Payload); err == nil {
			previousExpiry = baseCommon.Expires
		}
	}

	baseline := now
	if previousExpiry.After(baseline) {
		baseline = previousExpiry
	}
	expected := baseline.Add(time.Duration(eventCommon.ExpiryPeriodDays()) * 24 * time.Hour)
	tolerance := 24 * time.Hour

	if eventCommon.Expires.After(expected.Add(tolerance)) || eventCommon.Expires.Before(expected.Add(-tolerance)) {
		return ReasonExpiryOutOfRange
	}
	return ""
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

// Render produces the role-by-role table and final verdict line spec.md §7
// requires regardless of success.
func Render(result *Result) string {
	var b strings.Builder
	fmt.Fprintln(&b, "ROLE                       STATUS")
	if result.ChangeSet != nil {
		names := make([]string, 0, len(result.ChangeSet.Roles))
		for name := range result.ChangeSet.Roles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			change := result.ChangeSet.Roles[name]
			fmt.Fprintf(&b, "%-26s %s\n", name, change.Status)
		}
	}

	if len(result.NewInvites) > 0 {
		fmt.Fprintln(&b, "\nNEW INVITES")
		roles := make([]string, 0, len(result.NewInvites))
		for role := range result.NewInvites {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			fmt.Fprintf(&b, "  %s: %s\n", role, strings.Join(result.NewInvites[role], ", "))
		}
	}

	if len(result.Obligations) > 0 {
		fmt.Fprintln(&b, "\nOPEN OBLIGATIONS")
		for _, o := range result.Obligations {
			fmt.Fprintf(&b, "  %s: %s\n", o.Role, strings.Join(o.PendingOwners, ", "))
		}
	}

	if len(result.InvalidReasons) > 0 {
		fmt.Fprintln(&b, "\nINVALID REASONS")
		for _, rr := range result.InvalidReasons {
			reasons := make([]string, len(rr.Reasons))
			for i, r := range rr.Reasons {
				reasons[i] = string(r)
			}
			fmt.Fprintf(&b, "  %s: %s\n", rr.Role, strings.Join(reasons, ", "))
		}
	}

	fmt.Fprintf(&b, "\nverdict: %s\n", result.Kind)
	return b.String()
}
