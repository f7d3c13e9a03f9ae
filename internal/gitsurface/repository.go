// Package gitsurface is the thin wrapper around a Git repository that the
// repository surface (internal/repo) is built on. It shells out to the
// installed git binary for every operation (refs, blobs, trees, commits,
// push); go-git appears only in GetGoGitRepository.
package gitsurface

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/jonboulle/clockwork"

	"github.com/jku/repository-playground/internal/errkind"
)

const (
	binary           = "git"
	committerTimeKey = "GIT_COMMITTER_DATE"
	authorTimeKey    = "GIT_AUTHOR_DATE"
)

// Repository is a lightweight wrapper around a Git repository, identified by
// its GIT_DIR.
type Repository struct {
	gitDirPath string
	clock      clockwork.Clock
}

// Open locates the git directory for repositoryPath (or the current working
// directory's enclosing repository, if repositoryPath is ".") and checks
// that git is on PATH.
func Open(repositoryPath string, clock clockwork.Clock) (*Repository, error) {
	slog.Debug("Looking for Git binary in PATH...")
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: unable to find Git binary, is Git installed?", errkind.GitSurfaceError)
	}
	if repositoryPath == "" {
		repositoryPath = "."
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	repo := &Repository{clock: clock}

	currentDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(repositoryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.GitSurfaceError, err)
	}
	defer os.Chdir(currentDir) //nolint:errcheck

	stdOut, stdErr, err := repo.executor("rev-parse", "--git-dir").withoutGitDir().execute()
	if err != nil {
		errContents, _ := io.ReadAll(stdErr)
		return nil, fmt.Errorf("%w: unable to identify git directory: %s", errkind.GitSurfaceError, strings.TrimSpace(string(errContents)))
	}
	stdOutContents, err := io.ReadAll(stdOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errkind.GitSurfaceError, err)
	}

	absPath, err := filepath.Abs(strings.TrimSpace(string(stdOutContents)))
	if err != nil {
		return nil, err
	}
	repo.gitDirPath = absPath

	return repo, nil
}

// GetGoGitRepository returns the go-git representation of this repository.
// No other package in this module calls it; Push shells out to git like the
// rest of this package.
func (r *Repository) GetGoGitRepository() (*git.Repository, error) {
	return git.PlainOpenWithOptions(r.gitDirPath, &git.PlainOpenOptions{DetectDotGit: true})
}

func (r *Repository) GetGitDir() string {
	return r.gitDirPath
}

type executor struct {
	r           *Repository
	args        []string
	env         []string
	stdIn       io.Reader
	unsetGitDir bool
}

func (r *Repository) executor(args ...string) *executor {
	return &executor{r: r, args: args, env: os.Environ()}
}

func (e *executor) withEnv(env ...string) *executor {
	e.env = append(e.env, env...)
	return e
}

func (e *executor) withoutGitDir() *executor {
	e.unsetGitDir = true
	return e
}

func (e *executor) withStdIn(stdIn *bytes.Buffer) *executor {
	e.stdIn = stdIn
	return e
}

func (e *executor) executeString() (string, error) {
	stdOut, stdErr, err := e.execute()
	if err != nil {
		stdErrContents, _ := io.ReadAll(stdErr)
		return "", fmt.Errorf("%w running `git %s`: %s", errkind.GitSurfaceError, strings.Join(e.args, " "), strings.TrimSpace(string(stdErrContents)))
	}
	stdOutContents, err := io.ReadAll(stdOut)
	if err != nil {
		return "", fmt.Errorf("%w: unable to read stdout: %s", errkind.GitSurfaceError, err)
	}
	return strings.TrimSpace(string(stdOutContents)), nil
}

func (e *executor) execute() (io.Reader, io.Reader, error) {
	if e.r.gitDirPath != "" && !e.unsetGitDir {
		e.args = append([]string{"--git-dir", e.r.gitDirPath}, e.args...)
	}
	cmd := exec.Command(binary, e.args...) //nolint:gosec
	cmd.Env = e.env
	cmd.Env = append(cmd.Env, "LC_ALL=C")

	var stdOut, stdErr bytes.Buffer
	cmd.Stdout = &stdOut
	cmd.Stderr = &stdErr
	if e.stdIn != nil {
		cmd.Stdin = e.stdIn
	}

	err := cmd.Run()
	return &stdOut, &stdErr, err
}
