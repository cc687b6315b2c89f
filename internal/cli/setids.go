package cli

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/record"
)

// Rename is one ID change made by set-ids.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewSetIDsCommand creates the set-ids command.
func NewSetIDsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-ids [id...]",
		Short: "Reassign record IDs from their metadata",
		Long: `Recompute the IDs of the given records, or of every record that has
not reached md_processed, using the configured ID pattern and the curated
index. The records file is rewritten and staged.

Selecting a record at md_processed or later fails: its ID may already be
cited elsewhere.

Examples:
  litstore set-ids
  litstore set-ids Smith2020 Doe2019`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetIDs(rootOpts, args, cmd)
		},
	}
}

func runSetIDs(opts *RootOptions, selected []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out := newFormatter(opts, cmd)
	out.OperationID = p.store.Notify(record.OpPrep)

	records, err := p.store.Load(ctx, false)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load records", err)
	}
	if len(selected) == 0 {
		selected = nil
	}

	updated, err := p.store.SetIDs(ctx, records, selected)
	var pe *record.PropagatedIDChangeError
	if errors.As(err, &pe) {
		if err := out.Error("PROPAGATED_ID_CHANGE", pe.Error(), pe.IDs); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "set-ids refused", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set IDs", err)
	}

	renames := renamesOf(records, updated)
	if opts.Format == "json" {
		return out.Success(renames)
	}
	for _, r := range renames {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", r.From, r.To)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d ID(s) changed\n", len(renames))
	return nil
}

// renamesOf matches records by their first origin.
func renamesOf(before, after map[string]*record.Record) []Rename {
	owner := make(map[string]string)
	for id, r := range before {
		for _, o := range r.Origins {
			owner[o] = id
		}
	}
	renames := []Rename{}
	for id, r := range after {
		if len(r.Origins) == 0 {
			continue
		}
		if old := owner[r.Origins[0]]; old != "" && old != id {
			renames = append(renames, Rename{From: old, To: id})
		}
	}
	slices.SortFunc(renames, func(a, b Rename) int { return cmp.Compare(a.From, b.From) })
	return renames
}
