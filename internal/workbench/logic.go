// This file holds the workbench's delta-building logic: the pure(-ish)
// operations that translate one interactive decision (add a signer, raise a
// threshold, accept an invitation, sign the role as drafted) into a mutation
// of the in-memory RoleSet the repository surface is holding open. Nothing
// here touches bubbletea -- update.go is the thin layer that calls into
// these from a key event.
package workbench

import (
	"context"
	"fmt"
	"sort"

	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/repo"
	"github.com/jku/repository-playground/internal/signerverifier"
	"github.com/jku/repository-playground/internal/tufmeta"
)

// listEditableRoles returns every role the workbench can open a menu for:
// root, the top-level targets role, and every delegated targets/<name> role,
// in a stable order (root, targets, then delegated roles alphabetically).
func listEditableRoles(rs tufmeta.RoleSet) []string {
	var delegated []string
	for name, role := range rs {
		if role.IsDelegatedTargets() {
			delegated = append(delegated, name)
		}
	}
	sort.Strings(delegated)

	roles := make([]string, 0, len(delegated)+2)
	if _, ok := rs[tufmeta.RoleRoot]; ok {
		roles = append(roles, tufmeta.RoleRoot)
	}
	if _, ok := rs[tufmeta.RoleTargets]; ok {
		roles = append(roles, tufmeta.RoleTargets)
	}
	return append(roles, delegated...)
}

// delegatingRoleName returns the role whose signed payload carries roleName's
// key set, threshold, and x-playground-invites entry (spec.md §3 "lives in
// the delegating role's signed payload"). Root is its own delegator: it
// signs itself, so its invites and key set live on root's own payload, same
// as targets' invites and key set live on root's. A delegated targets/<name>
// role's delegator is the top-level targets role -- the workbench only
// supports one level of delegation, matching every scenario in spec.md §8.
func delegatingRoleName(roleName string) string {
	if roleName == tufmeta.RoleRoot || roleName == tufmeta.RoleTargets {
		return tufmeta.RoleRoot
	}
	return tufmeta.RoleTargets
}

// signerItem is one row of a role's current signer list, rendered by the
// configure-signers screen.
type signerItem struct {
	owner  string
	keyID  string
	online bool
}

func (i signerItem) Title() string {
	if i.online {
		return i.owner + " (online)"
	}
	return i.owner
}
func (i signerItem) Description() string { return i.keyID }
func (i signerItem) FilterValue() string { return i.owner }

// currentSigners resolves the keys currently authorized to sign roleName,
// plus its threshold.
func currentSigners(rs tufmeta.RoleSet, roleName string) ([]signerItem, int, error) {
	root, err := rs.Root()
	if err != nil {
		return nil, 0, err
	}

	var keys []*tufmeta.Key
	var threshold int
	switch roleName {
	case tufmeta.RoleRoot, tufmeta.RoleTargets:
		keys, threshold, err = root.RoleKeySet(roleName)
	default:
		parent, ok := rs[tufmeta.RoleTargets]
		if !ok {
			return nil, 0, fmt.Errorf("%w: no top-level targets role loaded", errkind.InvariantViolation)
		}
		targets, ok := parent.Targets()
		if !ok {
			return nil, 0, fmt.Errorf("%w: targets role has wrong payload type", errkind.MalformedMetadata)
		}
		keys, threshold, err = targets.DelegationKeySet(roleName)
	}
	if err != nil {
		return nil, 0, err
	}

	items := make([]signerItem, 0, len(keys))
	for _, key := range keys {
		if owner, ok := key.KeyOwner(); ok {
			items = append(items, signerItem{owner: owner, keyID: key.KeyID})
			continue
		}
		uri, _ := key.OnlineURI()
		items = append(items, signerItem{owner: uri, keyID: key.KeyID, online: true})
	}
	return items, threshold, nil
}

// inviteItem is a pending invitation surfaced to its invitee: a role they
// have been asked to help sign.
type inviteItem struct {
	role string
}

func (i inviteItem) Title() string       { return i.role }
func (i inviteItem) Description() string { return "accept to add your key and sign" }
func (i inviteItem) FilterValue() string { return i.role }

// pendingInvites scans every delegating role's x-playground-invites for
// entries addressed to userName.
func pendingInvites(rs tufmeta.RoleSet, userName string) []inviteItem {
	var invites []inviteItem
	for _, roleName := range listEditableRoles(rs) {
		delegator, ok := rs[delegatingRoleName(roleName)]
		if !ok {
			continue
		}
		common, err := commonOf(delegator.Payload)
		if err != nil {
			continue
		}
		for _, owner := range common.Invites()[roleName] {
			if owner == userName {
				invites = append(invites, inviteItem{role: roleName})
			}
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].role < invites[j].role })
	return invites
}

func commonOf(payload any) (*tufmeta.Common, error) {
	switch p := payload.(type) {
	case *tufmeta.RootMetadata:
		return &p.Common, nil
	case *tufmeta.TargetsMetadata:
		return &p.Common, nil
	default:
		return nil, fmt.Errorf("%w: role payload %T has no delegation fields", errkind.MalformedMetadata, payload)
	}
}

// addSignerInvite records an invite for owner on roleName's delegator,
// staging the edit in the repository surface as a partial event -- the
// invite itself needs no signature, but it does change the delegator's
// content, so the delegator will need a fresh signature before the event can
// publish (spec.md §4.C content_changed).
func addSignerInvite(r *repo.Repository, roleName, owner string) error {
	delegatorName := delegatingRoleName(roleName)
	entry, ok := r.ReadRole(delegatorName)
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, delegatorName)
	}
	common, err := commonOf(entry.Payload)
	if err != nil {
		return err
	}
	common.AddInvite(roleName, owner)
	return r.WriteRole(delegatorName, entry, nil, 0, true)
}

// setThreshold updates roleName's signing threshold on its delegator.
func setThreshold(r *repo.Repository, roleName string, threshold int) error {
	delegatorName := delegatingRoleName(roleName)
	entry, ok := r.ReadRole(delegatorName)
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, delegatorName)
	}

	if roleName == tufmeta.RoleRoot || roleName == tufmeta.RoleTargets {
		root, ok := entry.Root()
		if !ok {
			return fmt.Errorf("%w: root role has wrong payload type", errkind.MalformedMetadata)
		}
		if err := root.UpdateThreshold(roleName, threshold); err != nil {
			return err
		}
		return r.WriteRole(delegatorName, entry, nil, 0, true)
	}

	targets, ok := entry.Targets()
	if !ok {
		return fmt.Errorf("%w: targets role has wrong payload type", errkind.MalformedMetadata)
	}
	delegation, exists := targets.Delegations.Find(roleName)
	if !exists {
		return fmt.Errorf("%w: no delegation named %q", errkind.InvariantViolation, roleName)
	}
	if delegation.KeyIDs.Len() < threshold {
		return fmt.Errorf("%w: key set of size %d cannot meet threshold %d", errkind.InvariantViolation, delegation.KeyIDs.Len(), threshold)
	}
	delegation.Threshold = threshold
	return r.WriteRole(delegatorName, entry, nil, 0, true)
}

// setExpiryPeriods sets roleName's own x-playground-expiry-period and
// x-playground-signing-period custom fields.
func setExpiryPeriods(r *repo.Repository, roleName string, expiryDays, signingDays int) error {
	entry, ok := r.ReadRole(roleName)
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, roleName)
	}
	common, err := roleCommonOf(entry.Payload)
	if err != nil {
		return err
	}
	common.SetExpiryPeriodDays(expiryDays)
	common.SetSigningPeriodDays(signingDays)
	return r.WriteRole(roleName, entry, nil, 0, true)
}

func roleCommonOf(payload any) (*tufmeta.Common, error) {
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
		return nil, fmt.Errorf("%w: unrecognized role payload type %T", errkind.MalformedMetadata, payload)
	}
}

// acceptInvite binds a fresh key from the offline signer backend to
// userName, adds it to roleName's delegator key set, clears the invite, and
// signs roleName with the new key -- spec.md §4.F: "generate or bind a
// public key, add it to the delegating role's key set, clear the invite,
// sign the delegated role".
func acceptInvite(ctx context.Context, r *repo.Repository, backend signerverifier.SignerBackend, roleName, userName string) error {
	key, err := backend.PublicKey(ctx)
	if err != nil {
		return err
	}
	if err := key.SetKeyOwner(userName); err != nil {
		return err
	}

	delegatorName := delegatingRoleName(roleName)
	delegatorEntry, ok := r.ReadRole(delegatorName)
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, delegatorName)
	}

	switch roleName {
	case tufmeta.RoleRoot:
		root, _ := delegatorEntry.Root()
		if err := root.AddRootKey(key); err != nil {
			return err
		}
	case tufmeta.RoleTargets:
		root, _ := delegatorEntry.Root()
		if err := root.AddTargetsKey(key); err != nil {
			return err
		}
	default:
		targets, ok := delegatorEntry.Targets()
		if !ok {
			return fmt.Errorf("%w: targets role has wrong payload type", errkind.MalformedMetadata)
		}
		delegation, exists := targets.Delegations.Find(roleName)
		if !exists {
			return fmt.Errorf("%w: no delegation named %q", errkind.InvariantViolation, roleName)
		}
		targets.Delegations.AddKey(key)
		delegation.KeyIDs.Add(key.KeyID)
	}

	delegatorCommon, err := commonOf(delegatorEntry.Payload)
	if err != nil {
		return err
	}
	delegatorCommon.ClearInvite(roleName, userName)
	if err := r.WriteRole(delegatorName, delegatorEntry, nil, 0, true); err != nil {
		return err
	}

	return signRole(ctx, r, signerverifier.Signer{Backend: backend}, roleName)
}

// continueRole re-signs roleName with the configured offline signer,
// replacing any prior signature from the same key -- the workbench's model
// for "the editor signs off on the role as currently drafted" (spec.md §4.F
// "continue" menu entry, which commits the edit to the staged event).
func continueRole(ctx context.Context, r *repo.Repository, backend signerverifier.SignerBackend, roleName string) error {
	return signRole(ctx, r, signerverifier.Signer{Backend: backend}, roleName)
}

// signRole signs roleName's current canonical bytes with signer, replacing
// any existing signature from the same key ID (re-signing after an edit,
// rather than accumulating stale duplicate signatures from the same signer).
func signRole(ctx context.Context, r *repo.Repository, signer signerverifier.Signer, roleName string) error {
	entry, ok := r.ReadRole(roleName)
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, roleName)
	}
	sig, err := signer.SignRole(ctx, entry)
	if err != nil {
		return fmt.Errorf("%w: %s", errkind.SignatureRejected, err)
	}

	replaced := false
	for i, existing := range entry.Signatures {
		if existing.KeyID == sig.KeyID {
			entry.Signatures[i] = sig
			replaced = true
			break
		}
	}
	if !replaced {
		entry.Signatures = append(entry.Signatures, sig)
	}
	return r.WriteRole(roleName, entry, nil, 0, true)
}
