package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/history"
	"github.com/roach88/litstore/internal/record"
)

// TraceResult holds the trace output of one record.
type TraceResult struct {
	ID    string              `json:"id"`
	Steps []history.TraceStep `json:"steps"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <id>",
		Short: "Show the history of a record",
		Long: `Show every commit that changed a record, oldest first, with the
fields each commit added, changed or removed.

Examples:
  litstore trace Smith2020
  litstore trace Smith2020 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTrace(opts *RootOptions, id string, cmd *cobra.Command) error {
	p, err := openProject(opts, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out := newFormatter(opts, cmd)
	out.OperationID = p.store.Notify(record.OpExplore)

	steps, err := p.history.Trace(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to trace record", err)
	}

	if opts.Format == "json" {
		if steps == nil {
			steps = []history.TraceStep{}
		}
		return out.Success(TraceResult{ID: id, Steps: steps})
	}
	if len(steps) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No history found for record: %s\n", id)
		return nil
	}
	writeTrace(cmd.OutOrStdout(), steps)
	return nil
}

func writeTrace(w io.Writer, steps []history.TraceStep) {
	for i, s := range steps {
		if i > 0 {
			fmt.Fprintln(w)
		}
		hash := s.Commit.Hash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		fmt.Fprintf(w, "%s %s %s (%s)\n",
			s.Commit.Time.UTC().Format(time.DateTime), hash, s.Commit.Message, s.Commit.Author)
		if !s.Present {
			fmt.Fprintln(w, "  record removed")
			continue
		}
		for _, c := range s.Changes {
			switch {
			case c.Old == "":
				fmt.Fprintf(w, "  + %s: %s\n", c.Field, c.New)
			case c.New == "":
				fmt.Fprintf(w, "  - %s: %s\n", c.Field, c.Old)
			default:
				fmt.Fprintf(w, "  ~ %s: %s -> %s\n", c.Field, c.Old, c.New)
			}
		}
	}
}
