package gitsurface

import (
	"fmt"

	"github.com/jku/repository-playground/internal/errkind"
)

const DefaultRemoteName = "origin"

// Push pushes refName to remoteName as a fast-forward-only update, matching
// the CI engines' "--push" flag (spec.md §6): a signing event never force
// pushes over a concurrent write.
func (r *Repository) Push(remoteName, refName string) error {
	_, err := r.executor("push", remoteName, refName).executeString()
	if err != nil {
		return fmt.Errorf("%w: unable to push %q to %q: %s", errkind.GitSurfaceError, refName, remoteName, err)
	}
	return nil
}
