// Package sign implements the playground-ci sign subcommand: the CLI entry
// point for the signer workbench (spec.md §4.F), run locally by a human
// signer rather than by the CI platform.
package sign

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jku/repository-playground/internal/cmd/cliutil"
	"github.com/jku/repository-playground/internal/workbench"
)

type options struct {
	repoPath string
	ref      string
	remote   string
	push     bool
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.repoPath, "repo", ".", "path to the repository")
	cmd.Flags().StringVar(&o.ref, "ref", "", "signing-event branch to edit")
	cmd.Flags().StringVar(&o.remote, "remote", "", "remote to push the event branch to; defaults to the configured push-remote")
	cmd.Flags().BoolVar(&o.push, "push", false, "push the event branch after the workbench exits")
	//nolint:errcheck
	cmd.MarkFlagRequired("ref")
}

func (o *options) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := cliutil.Open(ctx, o.repoPath, o.ref)
	if err != nil {
		return err
	}

	if err := workbench.Run(ctx, eng.Repo, eng.Config.BackendConfig(), eng.Config.UserName); err != nil {
		return err
	}

	if _, err := eng.Repo.Flush(fmt.Sprintf("playground-sign: update %s", o.ref)); err != nil {
		return err
	}

	if o.push {
		remote := o.remote
		if remote == "" {
			remote = eng.Config.PushRemote
		}
		return eng.Git.Push(remote, o.ref)
	}
	return nil
}

// New returns the "sign" subcommand: launches the signer workbench against
// an event branch, then flushes the edits (and optionally pushes them).
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:               "sign",
		Short:             "Launch the interactive signer workbench against a signing-event branch",
		Args:              cobra.NoArgs,
		RunE:              o.Run,
		DisableAutoGenTag: true,
	}
	o.AddFlags(cmd)

	return cmd
}
