// Package status implements the playground-ci status subcommand.
package status

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jku/repository-playground/internal/cmd/cliutil"
	"github.com/jku/repository-playground/internal/signerverifier"
	"github.com/jku/repository-playground/internal/signingevent"
)

type options struct {
	repoPath string
	baseRef  string
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&o.repoPath,
		"repo",
		".",
		"path to the repository",
	)
	cmd.Flags().StringVar(
		&o.baseRef,
		"base",
		"refs/heads/main",
		"trusted baseline ref the event is evaluated against",
	)
}

func (o *options) Run(cmd *cobra.Command, args []string) error {
	eventRef := args[0]
	ctx := cmd.Context()

	base, err := cliutil.Open(ctx, o.repoPath, o.baseRef)
	if err != nil {
		return fmt.Errorf("loading base ref %q: %w", o.baseRef, err)
	}
	event, err := cliutil.Open(ctx, o.repoPath, eventRef)
	if err != nil {
		return fmt.Errorf("loading event ref %q: %w", eventRef, err)
	}

	targetFileHashes, err := cliutil.TargetFileHashes(event.Git, eventRef)
	if err != nil {
		return err
	}

	result, err := signingevent.Evaluate(base.Repo.RoleSet(), event.Repo.RoleSet(), signerverifier.Verifier{}, targetFileHashes, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), signingevent.Render(result))

	if result.Kind != signingevent.VerdictPublishable {
		os.Exit(1)
	}
	return nil
}

// New returns the "status" subcommand: renders the signing-event verdict of
// eventRef against --base (spec.md §6 engine surface table).
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:               "status <event-ref>",
		Short:             "Report the signing-event verdict of a ref against the trusted baseline",
		Args:              cobra.ExactArgs(1),
		RunE:              o.Run,
		DisableAutoGenTag: true,
	}
	o.AddFlags(cmd)

	return cmd
}
