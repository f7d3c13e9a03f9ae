package gitsurface

import (
	"errors"
	"fmt"
	"time"

	"github.com/jku/repository-playground/internal/errkind"
)

// Commit creates a commit with the given tree over targetRef's current tip
// and advances targetRef to it. It does not touch any worktree: this is
// meant purely for managing the metadata ref, mirroring how the upstream
// repository surface never checks out the commits it writes.
func (r *Repository) Commit(treeID Hash, targetRef, message string) (Hash, error) {
	currentTip, err := r.GetReference(targetRef)
	if err != nil {
		if !errors.Is(err, ErrReferenceNotFound) {
			return ZeroHash, err
		}
	}

	args := []string{"commit-tree", "-m", message}
	if !currentTip.IsZero() {
		args = append(args, "-p", currentTip.String())
	}
	args = append(args, treeID.String())

	now := r.clock.Now().Format(time.RFC3339)
	env := []string{fmt.Sprintf("%s=%s", committerTimeKey, now), fmt.Sprintf("%s=%s", authorTimeKey, now)}

	stdOut, err := r.executor(args...).withEnv(env...).executeString()
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: unable to create commit: %s", errkind.GitSurfaceError, err)
	}
	commitID, err := NewHash(stdOut)
	if err != nil {
		return ZeroHash, err
	}

	return commitID, r.CheckAndSetReference(targetRef, commitID, currentTip)
}
