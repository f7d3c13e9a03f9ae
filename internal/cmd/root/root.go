// Package root assembles the playground-ci command tree.
package root

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jku/repository-playground/internal/cmd/bumponline"
	"github.com/jku/repository-playground/internal/cmd/bumpoffline"
	"github.com/jku/repository-playground/internal/cmd/sign"
	"github.com/jku/repository-playground/internal/cmd/snapshot"
	"github.com/jku/repository-playground/internal/cmd/status"
)

type options struct {
	verbose bool
}

func (o *options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(
		&o.verbose,
		"verbose",
		false,
		"enable debug logging",
	)
}

func (o *options) PreRunE(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// New returns the playground-ci root command, wiring the CLI-shaped engine
// surface table (spec.md §6): status, snapshot, bump-online, bump-offline.
func New() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:               "playground-ci",
		Short:             "CI-orchestrated TUF repository signing workflow",
		Long:              `playground-ci drives the signing-event and online-signing engines of a CI-orchestrated TUF repository: it reports signing status, and produces snapshot/timestamp and publishable output for a merged repository state.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: o.PreRunE,
	}
	o.AddFlags(cmd)

	cmd.AddCommand(status.New())
	cmd.AddCommand(snapshot.New())
	cmd.AddCommand(bumponline.New())
	cmd.AddCommand(bumpoffline.New())
	cmd.AddCommand(sign.New())

	return cmd
}
