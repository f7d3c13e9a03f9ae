// Package repo implements the repository surface (spec.md §4.B): reading
// and writing role files in a working tree, and the version/expiry bump
// arithmetic every other engine component builds on.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jku/repository-playground/internal/clock"
	"github.com/jku/repository-playground/internal/errkind"
	"github.com/jku/repository-playground/internal/gitsurface"
	"github.com/jku/repository-playground/internal/tufmeta"
)

const metadataDir = "metadata"

// GitSurface is the git capability the repository surface needs: reading
// blobs off a ref's tree and committing a new tree back. Kept as an
// interface (rather than a concrete *gitsurface.Repository) so the delta
// analyzer and signing-event engine can exercise the repository surface
// against an in-memory fake in tests.
type GitSurface interface {
	GetReference(refName string) (gitsurface.Hash, error)
	GetCommitTreeID(commitID gitsurface.Hash) (gitsurface.Hash, error)
	GetAllFilesInTree(treeID gitsurface.Hash) (map[string]gitsurface.Hash, error)
	ReadBlob(blobID gitsurface.Hash) ([]byte, error)
	WriteBlob(contents []byte) (gitsurface.Hash, error)
	WriteFlatTree(entries map[string]gitsurface.Hash) (gitsurface.Hash, error)
	Commit(treeID gitsurface.Hash, targetRef, message string) (gitsurface.Hash, error)
	Push(remoteName, refName string) error
}

var _ GitSurface = (*gitsurface.Repository)(nil)

// Repository is the repository surface over one ref's working tree. It
// loads every role file present at open() and lets callers read, write, and
// bump individual roles; it never commits on its own -- spec.md §4.B is
// explicit that write_role "does not talk to git; the caller commits".
type Repository struct {
	git      GitSurface
	ref      string
	clock    clock.Clock
	verifier tufmeta.Verifier

	roles tufmeta.RoleSet
}

// RoleSet returns the in-memory role graph, for the delta analyzer and
// signing-event engine to diff and verify directly.
func (r *Repository) RoleSet() tufmeta.RoleSet {
	return r.roles
}

// Open loads every role file present at ref's tip into memory. verifier is
// used by WriteRole to check a role's signature set against its delegating
// threshold; it may be nil if the caller only ever writes with
// partialEvent=true (e.g. the signer workbench staging an in-progress
// event).
func Open(ctx context.Context, git GitSurface, ref string, c clock.Clock, verifier tufmeta.Verifier) (*Repository, error) {
	if c == nil {
		c = clock.Real()
	}
	if verifier == nil {
		verifier = noVerifier{}
	}

	r := &Repository{git: git, ref: ref, clock: c, verifier: verifier, roles: tufmeta.RoleSet{}}

	tip, err := git.GetReference(ref)
	if err != nil && !errors.Is(err, gitsurface.ErrReferenceNotFound) {
		return nil, fmt.Errorf("%w: unable to resolve ref %q: %s", errkind.GitSurfaceError, ref, err)
	}
	if tip.IsZero() {
		return r, nil
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
		name, ok := roleNameFromPath(path)
		if !ok {
			continue
		}
		contents, err := git.ReadBlob(blobID)
		if err != nil {
			return nil, err
		}
		role, err := loadRole(name, contents)
		if err != nil {
			return nil, fmt.Errorf("%w: role %q: %s", errkind.MalformedMetadata, name, err)
		}
		r.roles[name] = role
	}

	return r, nil
}

// ListRoles returns the names of every role present in the working tree.
func (r *Repository) ListRoles() []string {
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	return names
}

// ReadRole returns the named role, or (nil, false) if it has never been
// written.
func (r *Repository) ReadRole(name string) (*tufmeta.SignedRole, bool) {
	role, ok := r.roles[name]
	return role, ok
}

// WriteRole persists role under name, refusing to do so unless its
// signature set already meets the delegating role's threshold -- unless
// partialEvent is set, which is how the signer workbench stages an
// in-progress event branch with an incomplete signature set.
func (r *Repository) WriteRole(name string, role *tufmeta.SignedRole, delegatingKeys []*tufmeta.Key, threshold int, partialEvent bool) error {
	if !partialEvent {
		canonical, err := role.CanonicalBytes()
		if err != nil {
			return err
		}
		result, err := tufmeta.VerifySignatures(r.verifier, canonical, role.Signatures, delegatingKeys, threshold)
		if err != nil {
			return err
		}
		if result.Outcome != tufmeta.VerifyOK {
			return fmt.Errorf("%w: role %q does not meet its signing threshold", errkind.InvariantViolation, name)
		}
	}

	r.roles[name] = role
	return nil
}

// BumpVersion increments the role's version and sets its expiry to
// max(now, current expiry) + expiry_period, preserving every other signed field (spec.md §4.B).
func (r *Repository) BumpVersion(name string) error {
	role, ok := r.roles[name]
	if !ok {
		return fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, name)
	}
	common, err := commonOf(role.Payload)
	if err != nil {
		return err
	}
	common.Bump(r.clock.Now())
	return nil
}

// NeedsBump reports whether the role's signing period has been entered:
// now + signing_period >= expires.
func (r *Repository) NeedsBump(name string) (bool, error) {
	role, ok := r.roles[name]
	if !ok {
		return false, fmt.Errorf("%w: no such role %q", errkind.InvariantViolation, name)
	}
	common, err := commonOf(role.Payload)
	if err != nil {
		return false, err
	}
	return common.NeedsBump(r.clock.Now()), nil
}

// Flush serializes every in-memory role back into the working tree and
// commits it to ref, returning the new commit ID. Still the caller's call to
// make (per write_role's "the caller commits"): Flush is how the caller
// exercises that contract, not an implicit side effect of WriteRole/
// BumpVersion.
func (r *Repository) Flush(message string) (gitsurface.Hash, error) {
	entries := map[string]gitsurface.Hash{}
	for name, role := range r.roles {
		contents, err := json.Marshal(role)
		if err != nil {
			return gitsurface.ZeroHash, err
		}
		blobID, err := r.git.WriteBlob(contents)
		if err != nil {
			return gitsurface.ZeroHash, err
		}
		entries[pathFromRoleName(name)] = blobID
	}

	treeID, err := r.git.WriteFlatTree(entries)
	if err != nil {
		return gitsurface.ZeroHash, err
	}
	return r.git.Commit(treeID, r.ref, message)
}

func loadRole(name string, contents []byte) (*tufmeta.SignedRole, error) {
	role := &tufmeta.SignedRole{Name: name}
	if err := json.Unmarshal(contents, role); err != nil {
		return nil, err
	}
	return role, nil
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
		return nil, fmt.Errorf("%w: unrecognized role payload type %T", errkind.MalformedMetadata, payload)
	}
}

func roleNameFromPath(path string) (string, bool) {
	const prefix = metadataDir + "/"
	const suffix = ".json"
	if len(path) <= len(prefix)+len(suffix) || path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		return "", false
	}
	return path[len(prefix) : len(path)-len(suffix)], true
}

func pathFromRoleName(name string) string {
	return metadataDir + "/" + name + ".json"
}

type noVerifier struct{}

func (noVerifier) Verify(_ *tufmeta.Key, _ []byte, _ string) (bool, error) {
	return false, fmt.Errorf("%w: no signature verifier configured", errkind.SignerUnavailable)
}
