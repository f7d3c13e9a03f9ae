package gitsurface

import (
	"fmt"
	"strings"

	"github.com/jku/repository-playground/internal/errkind"
)

var errReferenceNotFound = fmt.Errorf("%w: requested Git reference not found", errkind.GitSurfaceError)

// ErrReferenceNotFound is returned by GetReference when refName does not
// resolve. Callers distinguish "ref missing" (repo not yet initialized) from
// other git surface errors with errors.Is.
var ErrReferenceNotFound = errReferenceNotFound

func (r *Repository) GetReference(refName string) (Hash, error) {
	refTipID, err := r.executor("rev-parse", refName).executeString()
	if err != nil {
		if strings.Contains(err.Error(), "unknown revision or path not in the working tree") {
			return ZeroHash, ErrReferenceNotFound
		}
		return ZeroHash, err
	}

	hash, err := NewHash(refTipID)
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: invalid Git ID for reference %q: %s", errkind.GitSurfaceError, refName, err)
	}
	return hash, nil
}

// CheckAndSetReference sets refName to newGitID only if it currently points
// at oldGitID, guarding against a concurrent writer racing the update.
func (r *Repository) CheckAndSetReference(refName string, newGitID, oldGitID Hash) error {
	_, err := r.executor("update-ref", "--create-reflog", refName, newGitID.String(), oldGitID.String()).executeString()
	if err != nil {
		return fmt.Errorf("%w: unable to set reference %q: %s", errkind.GitSurfaceError, refName, err)
	}
	return nil
}
