// Package bumpoffline implements the playground-ci bump-offline subcommand.
package bumpoffline

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jku/repository-playground/internal/cmd/cliutil"
	"github.com/jku/repository-playground/internal/onlinesign"
)

type options struct {
	repoPath string
	ref      string
	remote   string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.repoPath, "repo", ".", "path to the repository")
	cmd.Flags().StringVar(&o.ref, "ref", "refs/heads/main", "baseline ref to branch bump events from")
	cmd.Flags().StringVar(&o.remote, "push", "", "remote to push opened event branches to; defaults to the configured push-remote")
}

func (o *options) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := cliutil.Open(ctx, o.repoPath, o.ref)
	if err != nil {
		return err
	}

	remote := o.remote
	if remote == "" {
		remote = eng.Config.PushRemote
	}

	branches, err := onlinesign.BumpOffline(ctx, eng.Git, o.ref, remote, eng.Repo, time.Now())
	if err != nil {
		return err
	}

	for _, branch := range branches {
		fmt.Fprintln(cmd.OutOrStdout(), branch)
	}
	return nil
}

// New returns the "bump-offline" subcommand (spec.md §6 engine surface
// table): opens an unsigned event branch for every offline role that has
// entered its signing period and prints the branch names, one per line.
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:               "bump-offline",
		Short:             "Open signing-event branches for offline roles that have entered their signing period",
		Args:              cobra.NoArgs,
		RunE:              o.Run,
		DisableAutoGenTag: true,
	}
	o.AddFlags(cmd)

	return cmd
}
