package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/check"
	"github.com/roach88/litstore/internal/record"
	"github.com/roach88/litstore/internal/store"
)

// StatusCount is the number of records in one state.
type StatusCount struct {
	Status record.Status `json:"status"`
	Count  int           `json:"count"`
}

// StatusResult is the status command output.
type StatusResult struct {
	Records  int                      `json:"records"`
	ByStatus []StatusCount            `json:"by_status"`
	Staged   bool                     `json:"staged"`
	Unstaged bool                     `json:"unstaged"`
	Changes  store.Changes            `json:"changes"`
	Pending  map[record.Operation]int `json:"pending"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize records and uncommitted changes",
		Long: `Count records per state and list the entries and status transitions
changed since the last commit.

Example:
  litstore status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out := newFormatter(opts, cmd)
	out.OperationID = p.store.Notify(record.OpExplore)

	current, err := p.store.Load(ctx, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load records", err)
	}
	prior, err := p.history.PriorHeaders(ctx, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read prior records", err)
	}

	result := StatusResult{Records: len(current), Pending: map[record.Operation]int{}}
	counts := make(map[record.Status]int)
	for _, r := range current {
		counts[r.Status]++
	}
	for _, s := range record.States {
		if counts[s] > 0 {
			result.ByStatus = append(result.ByStatus, StatusCount{Status: s, Count: counts[s]})
		}
	}

	headers := slices.Collect(maps.Values(current))
	for _, op := range check.Transitions(prior, headers) {
		result.Pending[op]++
	}

	if result.Staged, err = p.store.HasChanges(ctx, backend.ScopeStaged); err != nil {
		return WrapExitError(ExitCommandError, "failed to inspect changes", err)
	}
	if result.Unstaged, err = p.store.HasChanges(ctx, backend.ScopeUnstaged); err != nil {
		return WrapExitError(ExitCommandError, "failed to inspect changes", err)
	}
	if result.Changes, err = p.store.ChangedIDs(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to inspect changes", err)
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	writeStatus(cmd, result)
	return nil
}

func writeStatus(cmd *cobra.Command, r StatusResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d records\n", r.Records)
	for _, c := range r.ByStatus {
		fmt.Fprintf(w, "  %-30s %d\n", c.Status, c.Count)
	}
	if !r.Changes.Empty() {
		fmt.Fprintln(w, "uncommitted changes:")
		for _, line := range []struct {
			label string
			ids   []string
		}{{"added", r.Changes.Added}, {"changed", r.Changes.Changed}, {"removed", r.Changes.Removed}} {
			if len(line.ids) > 0 {
				fmt.Fprintf(w, "  %-8s %s\n", line.label, strings.Join(line.ids, ", "))
			}
		}
	}
	if len(r.Pending) > 0 {
		fmt.Fprintln(w, "operations since last commit:")
		for _, op := range slices.Sorted(maps.Keys(r.Pending)) {
			fmt.Fprintf(w, "  %-12s %d\n", op, r.Pending[op])
		}
	}
}
