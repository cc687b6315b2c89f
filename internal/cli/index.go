package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/index"
	"github.com/roach88/litstore/internal/record"
)

// IndexOptions holds flags for the index commands.
type IndexOptions struct {
	*RootOptions
	Database string
}

// NewIndexCommand creates the index command group.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the curated ID index",
		Long: `The curated index maps the metadata fingerprint of a work to the ID a
curated project gave it. ID assignment consults it before synthesizing an ID.

The database is index_path from settings.yaml unless --db is given.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the index database")

	cmd.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add the processed records of this project to the index",
		Long: `Add every record at md_processed or later to the index. Records
without author, title and year are skipped.

Example:
  litstore index add --db ~/.local/share/litstore/index.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexAdd(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "lookup <id>",
		Short:         "Look up the curated ID of a record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexLookup(opts, args[0], cmd)
		},
	})

	return cmd
}

// withIndex opens the project and the index and calls fn.
func withIndex(opts *IndexOptions, cmd *cobra.Command, fn func(p *project, ix *index.Index, out *OutputFormatter) error) error {
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	ix := p.index
	if opts.Database != "" {
		ix, err = index.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open index", err)
		}
		defer func() {
			if err := ix.Close(); err != nil {
				p.logger.Error("error closing index", "error", err)
			}
		}()
	}
	if ix == nil {
		return NewExitError(ExitCommandError, "no index configured: set index_path or pass --db")
	}

	out := newFormatter(opts.RootOptions, cmd)
	out.OperationID = p.store.Notify(record.OpExplore)
	return fn(p, ix, out)
}

func runIndexAdd(opts *IndexOptions, cmd *cobra.Command) error {
	return withIndex(opts, cmd, func(p *project, ix *index.Index, out *OutputFormatter) error {
		ctx := cmd.Context()
		records, err := p.store.Load(ctx, false)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load records", err)
		}
		var processed []*record.Record
		for _, id := range slices.Sorted(maps.Keys(records)) {
			if records[id].Propagated() {
				processed = append(processed, records[id])
			}
		}
		n, err := ix.AddAll(ctx, processed)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to index records", err)
		}
		total, err := ix.Len(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count index", err)
		}

		if opts.Format == "json" {
			return out.Success(map[string]int{"added": n, "total": total})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records (%d in index)\n", n, total)
		return nil
	})
}

func runIndexLookup(opts *IndexOptions, id string, cmd *cobra.Command) error {
	return withIndex(opts, cmd, func(p *project, ix *index.Index, out *OutputFormatter) error {
		ctx := cmd.Context()
		records, err := p.store.Load(ctx, false)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load records", err)
		}
		r, ok := records[id]
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("record %s not found", id))
		}
		curated, err := ix.Retrieve(ctx, r)
		if errors.Is(err, index.ErrNotInIndex) || errors.Is(err, index.ErrNotEnoughData) {
			if err := out.Error("NOT_FOUND", err.Error(), map[string]string{"id": id}); err != nil {
				return err
			}
			return WrapExitError(ExitFailure, "lookup failed", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query index", err)
		}

		if opts.Format == "json" {
			return out.Success(map[string]string{"id": id, "curated_id": curated})
		}
		fmt.Fprintln(cmd.OutOrStdout(), curated)
		return nil
	})
}
