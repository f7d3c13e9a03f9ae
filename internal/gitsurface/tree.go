package gitsurface

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jku/repository-playground/internal/errkind"
)

// ReadBlob returns the contents of the blob referenced by blobID.
func (r *Repository) ReadBlob(blobID Hash) ([]byte, error) {
	objType, err := r.executor("cat-file", "-t", blobID.String()).executeString()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to inspect object: %s", errkind.GitSurfaceError, err)
	} else if objType != "blob" {
		return nil, fmt.Errorf("%w: %q is not a blob object", errkind.GitSurfaceError, blobID.String())
	}

	stdOut, stdErr, err := r.executor("cat-file", "-p", blobID.String()).execute()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read blob: %v", errkind.GitSurfaceError, stdErr)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(stdOut); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteBlob creates a blob object with the specified contents and returns
// its ID.
func (r *Repository) WriteBlob(contents []byte) (Hash, error) {
	objID, err := r.executor("hash-object", "-t", "blob", "-w", "--stdin").withStdIn(bytes.NewBuffer(contents)).executeString()
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: unable to write blob: %s", errkind.GitSurfaceError, err)
	}
	return NewHash(objID)
}

// GetAllFilesInTree returns every path in treeID (recursing into
// subdirectories) mapped to its blob hash.
func (r *Repository) GetAllFilesInTree(treeID Hash) (map[string]Hash, error) {
	stdOut, err := r.executor("ls-tree", "-r", treeID.String()).executeString()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to enumerate tree: %s", errkind.GitSurfaceError, err)
	}
	if stdOut == "" {
		return map[string]Hash{}, nil
	}

	files := map[string]Hash{}
	for _, entry := range strings.Split(stdOut, "\n") {
		entrySplit := strings.Split(entry, " ")
		rest := strings.SplitN(entrySplit[2], "\t", 2)
		hash, err := NewHash(rest[0])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid Git ID %q for path %q: %s", errkind.GitSurfaceError, rest[0], rest[1], err)
		}
		files[rest[1]] = hash
	}
	return files, nil
}

// WriteFlatTree writes a single-level tree containing exactly the given
// path -> blob-id entries. The metadata directory the repository surface
// manages is flat (spec.md §6's versioned layout), so there is no need for
// gittuf's full recursive TreeBuilder.
func (r *Repository) WriteFlatTree(entries map[string]Hash) (Hash, error) {
	var input strings.Builder
	for name, blobID := range entries {
		fmt.Fprintf(&input, "100644 blob %s\t%s\n", blobID.String(), name)
	}

	stdOut, err := r.executor("mktree").withStdIn(bytes.NewBufferString(input.String())).executeString()
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: unable to write tree: %s", errkind.GitSurfaceError, err)
	}
	return NewHash(stdOut)
}

func (r *Repository) GetCommitTreeID(commitID Hash) (Hash, error) {
	stdOut, err := r.executor("rev-parse", commitID.String()+"^{tree}").executeString()
	if err != nil {
		return ZeroHash, fmt.Errorf("%w: unable to identify tree for commit %q: %s", errkind.GitSurfaceError, commitID.String(), err)
	}
	return NewHash(stdOut)
}
