// Package snapshot implements the playground-ci snapshot subcommand.
package snapshot

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jku/repository-playground/internal/cmd/cliutil"
	"github.com/jku/repository-playground/internal/onlinesign"
)

type options struct {
	repoPath   string
	ref        string
	pushDir    string
	pushRemote string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.repoPath, "repo", ".", "path to the repository")
	cmd.Flags().StringVar(&o.ref, "ref", "refs/heads/main", "ref to snapshot")
	cmd.Flags().StringVar(&o.pushDir, "push", "", "directory to write the publishable tree to")
	cmd.MarkFlagRequired("push") //nolint:errcheck
	cmd.Flags().StringVar(&o.pushRemote, "remote", "", "remote to push the updated ref to; defaults to the configured push-remote")
}

func (o *options) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := cliutil.Open(ctx, o.repoPath, o.ref)
	if err != nil {
		return err
	}

	remote := o.pushRemote
	if remote == "" {
		remote = eng.Config.PushRemote
	}

	result, err := onlinesign.Snapshot(ctx, eng.Git, o.ref, eng.Repo, eng.Config.BackendConfig(), time.Now())
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Fprintln(cmd.OutOrStdout(), "snapshot is up to date, nothing to publish")
		os.Exit(1)
	}

	if err := cliutil.WriteTree(o.pushDir, result.Tree); err != nil {
		return err
	}
	if remote != "" {
		if err := eng.Git.Push(remote, o.ref); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published snapshot v%d, timestamp v%d\n", result.SnapshotVersion, result.TimestampVersion)
	return nil
}

// New returns the "snapshot" subcommand (spec.md §6 engine surface table).
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:               "snapshot",
		Short:             "Produce a snapshot and timestamp for the current targets state",
		Args:              cobra.NoArgs,
		RunE:              o.Run,
		DisableAutoGenTag: true,
	}
	o.AddFlags(cmd)

	return cmd
}
