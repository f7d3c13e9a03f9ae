// Package cliutil holds the bootstrap steps every playground-ci subcommand
// needs before it can call into an engine component: opening the git
// surface, loading the repository surface at a ref, and reading the local
// .playground-sign.ini.
package cliutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/jku/repository-playground/internal/clock"
	"github.com/jku/repository-playground/internal/config"
	"github.com/jku/repository-playground/internal/gitsurface"
	"github.com/jku/repository-playground/internal/repo"
	"github.com/jku/repository-playground/internal/signerverifier"
)

const ConfigFileName = ".playground-sign.ini"

// Engine bundles the git surface, the repository surface opened at ref, and
// local configuration -- everything a subcommand needs to call into one of
// the engine components.
type Engine struct {
	Git    *gitsurface.Repository
	Repo   *repo.Repository
	Config *config.Config
}

// Open opens repoPath's git surface, loads the repository surface at ref,
// and reads repoPath/.playground-sign.ini.
func Open(ctx context.Context, repoPath, ref string) (*Engine, error) {
	git, err := gitsurface.Open(repoPath, clock.Real())
	if err != nil {
		return nil, err
	}

	r, err := repo.Open(ctx, git, ref, clock.Real(), signerverifier.Verifier{})
	if err != nil {
		return nil, err
	}

	configPath := ConfigFileName
	if repoPath != "" && repoPath != "." {
		configPath = filepath.Join(repoPath, ConfigFileName)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return &Engine{Git: git, Repo: r, Config: cfg}, nil
}

// TargetFileHashes returns path -> sha256 hex digest for every file under
// /targets in ref's tree, the shape internal/signingevent.Evaluate wants for
// its unmatched-targets check (spec.md §4.D reason 2).
func TargetFileHashes(git *gitsurface.Repository, ref string) (map[string]string, error) {
	tip, err := git.GetReference(ref)
	if err != nil {
		return nil, err
	}
	if tip.IsZero() {
		return map[string]string{}, nil
	}
	treeID, err := git.GetCommitTreeID(tip)
	if err != nil {
		return nil, err
	}
	files, err := git.GetAllFilesInTree(treeID)
	if err != nil {
		return nil, err
	}

	const targetsDir = "targets/"
	hashes := map[string]string{}
	for path, blobID := range files {
		if !strings.HasPrefix(path, targetsDir) {
			continue
		}
		contents, err := git.ReadBlob(blobID)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(contents)
		hashes[strings.TrimPrefix(path, targetsDir)] = hex.EncodeToString(sum[:])
	}
	return hashes, nil
}

// WriteTree writes a publishable tree (path -> contents, spec.md §6) under
// dir, creating parent directories as needed.
func WriteTree(dir string, tree map[string][]byte) error {
	for path, contents := range tree {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, contents, 0o644); err != nil {
			return err
		}
	}
	return nil
}
