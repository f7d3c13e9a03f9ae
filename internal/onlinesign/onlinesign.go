// Package onlinesign implements the online-signing engine (spec.md §4.E):
// snapshot/timestamp regeneration and expiry-driven version bumps, run by
// the CI platform rather than a human signer.
package onlinesign

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jku/repository-playground/internal/clock"
	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/gitsurface"
	"github.com/jku/repository-playground/internal/repo"
	"github.com/jku/repository-playground/internal/signerverifier"
	"github.com/jku/repository-playground/internal/tufmeta"
)

// GitSurface is the git capability the online-signing engine needs beyond
// what internal/repo.GitSurface already covers: compare-and-set of a
// reference, used to create event branches for offline-role bumps.
type GitSurface interface {
	repo.GitSurface
	CheckAndSetReference(refName string, newGitID, oldGitID gitsurface.Hash) error
}

const targetsDir = "targets/"

// Result reports what a Snapshot/BumpOnline call produced.
type Result struct {
	Changed          bool
	SnapshotVersion  int
	TimestampVersion int
	// Tree is the publishable tree (spec.md §6): path -> file contents,
	// keyed the way downloader clients expect (versioned metadata file
	// names, unversioned snapshot/timestamp, byte-identical /targets/**).
	Tree map[string][]byte
}

// Snapshot reads the current targets and delegated-targets versions; if
// snapshot's recorded versions differ, produces snapshot v+1; if snapshot
// changed or timestamp is within its signing period, produces timestamp v+1.
// A re-run with unchanged inputs is a no-op (spec.md §8 property 6).
func Snapshot(ctx context.Context, git GitSurface, ref string, r *repo.Repository, cfg signerverifier.BackendConfig, now time.Time) (*Result, error) {
	slog.Debug("Computing target role versions for snapshot...")
	root, err := r.RoleSet().Root()
	if err != nil {
		return nil, err
	}

	currentVersions := map[string]int{}
	for name, role := range r.RoleSet() {
		if targets, ok := role.Targets(); ok {
			currentVersions[name] = targets.Common.Version
		}
	}

	snapEntry, ok := r.ReadRole(tufmeta.RoleSnapshot)
	if !ok {
		return nil, fmt.Errorf("%w: repository has no snapshot role", errkind.InvariantViolation)
	}
	snap, ok := snapEntry.Snapshot()
	if !ok {
		return nil, fmt.Errorf("%w: snapshot role has wrong payload type", errkind.MalformedMetadata)
	}

	snapshotChanged := !sameVersions(snap.Meta, currentVersions)
	if snapshotChanged {
		slog.Info("Targets versions changed since last snapshot, bumping snapshot")
		if err := bumpAndSign(ctx, r, root, tufmeta.RoleSnapshot, cfg, now, func() {
			snap.Meta = versionsToMeta(currentVersions)
		}); err != nil {
			return nil, err
		}
	}

	tsEntry, ok := r.ReadRole(tufmeta.RoleTimestamp)
	if !ok {
		return nil, fmt.Errorf("%w: repository has no timestamp role", errkind.InvariantViolation)
	}
	ts, ok := tsEntry.Timestamp()
	if !ok {
		return nil, fmt.Errorf("%w: timestamp role has wrong payload type", errkind.MalformedMetadata)
	}
	timestampNeedsBump, err := r.NeedsBump(tufmeta.RoleTimestamp)
	if err != nil {
		return nil, err
	}

	timestampChanged := snapshotChanged || timestampNeedsBump
	if timestampChanged {
		slog.Info("Bumping timestamp")
		if err := bumpAndSign(ctx, r, root, tufmeta.RoleTimestamp, cfg, now, func() {
			ts.Meta = map[string]tufmeta.SnapshotFileInfo{tufmeta.RoleSnapshot: {Version: snap.Common.Version}}
		}); err != nil {
			return nil, err
		}
	}

	if !snapshotChanged && !timestampChanged {
		slog.Debug("snapshot is up to date, nothing to publish")
		return &Result{Changed: false}, nil
	}

	if _, err := r.Flush("playground-ci: snapshot"); err != nil {
		return nil, err
	}

	tree, err := buildPublishableTree(git, ref, r.RoleSet())
	if err != nil {
		return nil, err
	}

	return &Result{
		Changed:          true,
		SnapshotVersion:  snap.Common.Version,
		TimestampVersion: ts.Common.Version,
		Tree:             tree,
	}, nil
}

// BumpOnline bumps every online role (snapshot, then timestamp) whose
// signing period has been entered, independent of content changes.
func BumpOnline(ctx context.Context, git GitSurface, ref string, r *repo.Repository, cfg signerverifier.BackendConfig, now time.Time) (*Result, error) {
	root, err := r.RoleSet().Root()
	if err != nil {
		return nil, err
	}

	changed := false

	snapNeedsBump, err := r.NeedsBump(tufmeta.RoleSnapshot)
	if err != nil {
		return nil, err
	}
	if snapNeedsBump {
		slog.Info("snapshot has entered its signing period, bumping")
		if err := bumpAndSign(ctx, r, root, tufmeta.RoleSnapshot, cfg, now, func() {}); err != nil {
			return nil, err
		}
		changed = true
	}

	tsNeedsBump, err := r.NeedsBump(tufmeta.RoleTimestamp)
	if err != nil {
		return nil, err
	}
	if changed || tsNeedsBump {
		slog.Info("bumping timestamp")
		if err := bumpAndSign(ctx, r, root, tufmeta.RoleTimestamp, cfg, now, func() {}); err != nil {
			return nil, err
		}
		changed = true
	}

	if !changed {
		return &Result{Changed: false}, nil
	}

	if _, err := r.Flush("playground-ci: bump-online"); err != nil {
		return nil, err
	}

	tree, err := buildPublishableTree(git, ref, r.RoleSet())
	if err != nil {
		return nil, err
	}
	return &Result{Changed: true, Tree: tree}, nil
}

// BumpOffline opens a version-only-bump event branch ("sign/<role>-bump-
// <version>") for every offline role whose signing period has been entered,
// ready for the signer workbench to drive new signatures onto. It never
// signs anything itself -- offline roles are, by definition, signed by
// humans.
func BumpOffline(ctx context.Context, git GitSurface, baseRef, remoteName string, r *repo.Repository, now time.Time) ([]string, error) {
	var branches []string
	for _, name := range r.ListRoles() {
		if name == tufmeta.RoleSnapshot || name == tufmeta.RoleTimestamp {
			continue
		}
		needsBump, err := r.NeedsBump(name)
		if err != nil {
			return nil, err
		}
		if !needsBump {
			continue
		}

		currentRole, ok := r.ReadRole(name)
		if !ok {
			return nil, fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, name)
		}
		branch := fmt.Sprintf("refs/heads/sign/%s-bump-%d", roleBranchSegment(name), versionOf(currentRole.Payload)+1)

		baseTip, err := git.GetReference(baseRef)
		if err != nil {
			return nil, err
		}
		if err := git.CheckAndSetReference(branch, baseTip, gitsurface.ZeroHash); err != nil {
			return nil, err
		}

		branchRepo, err := repo.Open(ctx, git, branch, clock.Frozen(now), nil)
		if err != nil {
			return nil, err
		}
		role, ok := branchRepo.ReadRole(name)
		if !ok {
			return nil, fmt.Errorf("%w: role %q vanished on branch %q", errkind.InvariantViolation, name, branch)
		}
		if err := branchRepo.BumpVersion(name); err != nil {
			return nil, err
		}
		role.Signatures = nil // the version-only bump invalidates every existing signature

		if _, err := branchRepo.Flush(fmt.Sprintf("playground-ci: bump %s to v%d", name, versionOf(role.Payload))); err != nil {
			return nil, err
		}
		if err := git.Push(remoteName, branch); err != nil {
			return nil, err
		}

		branches = append(branches, branch)
	}
	sort.Strings(branches)
	return branches, nil
}

// bumpAndSign bumps name's version/expiry, applies mutate to the in-memory
// payload (e.g. updating a snapshot's Meta map), signs it with the role's
// configured online key, and writes it back through WriteRole so the
// threshold invariant is enforced even for the engine's own writes.
func bumpAndSign(ctx context.Context, r *repo.Repository, root *tufmeta.RootMetadata, name string, cfg signerverifier.BackendConfig, now time.Time, mutate func()) error {
	if err := r.BumpVersion(name); err != nil {
		return err
	}
	mutate()

	keys, threshold, err := root.RoleKeySet(name)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: role %q has no online keys configured", errkind.InvariantViolation, name)
	}

	role, _ := r.ReadRole(name)
	var sigs []tufmeta.Signature
	for _, key := range keys {
		if !key.IsOnline() {
			return fmt.Errorf("%w: role %q may only be signed by online keys", errkind.InvariantViolation, name)
		}
		backend, err := signerverifier.ResolveOnline(ctx, key, cfg)
		if err != nil {
			return err
		}
		sig, err := (signerverifier.Signer{Backend: backend}).SignRole(ctx, role)
		if err != nil {
			return fmt.Errorf("%w: %s", errkind.SignatureRejected, err)
		}
		sigs = append(sigs, sig)
	}
	role.Signatures = sigs

	return r.WriteRole(name, role, keys, threshold, false)
}

func sameVersions(meta map[string]tufmeta.SnapshotFileInfo, versions map[string]int) bool {
	if len(meta) != len(versions) {
		return false
	}
	for name, version := range versions {
		if meta[name].Version != version {
			return false
		}
	}
	return true
}

func versionsToMeta(versions map[string]int) map[string]tufmeta.SnapshotFileInfo {
	meta := make(map[string]tufmeta.SnapshotFileInfo, len(versions))
	for name, version := range versions {
		meta[name] = tufmeta.SnapshotFileInfo{Version: version}
	}
	return meta
}

func versionOf(payload any) int {
	switch p := payload.(type) {
	case *tufmeta.RootMetadata:
		return p.Version
	case *tufmeta.TargetsMetadata:
		return p.Version
	case *tufmeta.SnapshotMetadata:
		return p.Version
	case *tufmeta.TimestampMetadata:
		return p.Version
	default:
		return 0
	}
}

func roleBranchSegment(name string) string {
	if name == tufmeta.RoleTargets {
		return "targets"
	}
	return name // "root", or "targets/<delegated>"
}

// buildPublishableTree renders the publishable layout from spec.md §6: every
// role file (versioned, except snapshot/timestamp) plus a byte-identical
// copy of the /targets/** tree.
func buildPublishableTree(git GitSurface, ref string, roles tufmeta.RoleSet) (map[string][]byte, error) {
	tree := map[string][]byte{}

	for name, role := range roles {
		contents, err := json.Marshal(role)
		if err != nil {
			return nil, err
		}
		tree[publishPath(name, role)] = contents
	}

	tip, err := git.GetReference(ref)
	if err != nil {
		return nil, err
	}
	if tip.IsZero() {
		return tree, nil
	}
	treeID, err := git.GetCommitTreeID(tip)
	if err != nil {
		return nil, err
	}
	files, err := git.GetAllFilesInTree(treeID)
	if err != nil {
		return nil, err
	}
	for path, blobID := range files {
		if len(path) <= len(targetsDir) || path[:len(targetsDir)] != targetsDir {
			continue
		}
		contents, err := git.ReadBlob(blobID)
		if err != nil {
			return nil, err
		}
		tree[path] = contents
	}

	return tree, nil
}

func publishPath(name string, role *tufmeta.SignedRole) string {
	if name == tufmeta.RoleSnapshot || name == tufmeta.RoleTimestamp {
		return "metadata/" + name + ".json"
	}
	return fmt.Sprintf("metadata/%d.%s.json", versionOf(role.Payload), name)
}
