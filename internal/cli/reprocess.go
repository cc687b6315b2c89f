package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/record"
	"github.com/roach88/litstore/internal/store"
)

// NewReprocessCommand creates the reprocess command.
func NewReprocessCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <id|all>",
		Short: "Remove records so they can be imported again",
		Long: `Remove one record, or with "all" the whole records file, so the
records are imported again from their sources.

The removed origins must be allowed explicitly on the next check
(--allow-removed).

Examples:
  litstore reprocess Smith2020
  litstore reprocess all`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReprocess(rootOpts, args[0], cmd)
		},
	}
}

func runReprocess(opts *RootOptions, id string, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out := newFormatter(opts, cmd)
	out.OperationID = p.store.Notify(record.OpLoad)

	if err := p.store.Reprocess(cmd.Context(), id); err != nil {
		return WrapExitError(ExitCommandError, "failed to reprocess", err)
	}
	if opts.Format == "json" {
		return out.Success(map[string]string{"reprocessed": id})
	}
	if id == store.ReprocessAll {
		fmt.Fprintln(cmd.OutOrStdout(), "removed all records")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
	return nil
}
