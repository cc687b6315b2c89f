package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/check"
	"github.com/roach88/litstore/internal/record"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	AllowRemoved []string
}

// Violation is one integrity problem in check output.
type Violation struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	ID      string            `json:"id,omitempty"`
	Origin  string            `json:"origin,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	Notes   []string          `json:"notes,omitempty"`
}

// CheckResult is the check command output.
type CheckResult struct {
	Records    int         `json:"records"`
	Violations []Violation `json:"violations"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the records file against the last commit",
		Long: `Check the working records file against its last committed version.

Reports duplicate IDs, missing, broken, shared or removed origins, unknown
statuses, illegal status transitions and ID changes of processed records.
Source files in the search directory must only have been appended to.

Exits with status 1 if violations are found.

Examples:
  litstore check
  litstore check --allow-removed a.bib/X --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.AllowRemoved, "allow-removed", nil, "origins that may disappear (repeatable)")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	out := newFormatter(opts.RootOptions, cmd)
	out.OperationID = p.store.Notify(record.OpCheck)

	current, errs, err := currentHeaders(p)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		prior, err := p.history.PriorHeaders(ctx, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read prior records", err)
		}
		checker := check.New(check.Options{
			ProjectRoot:       p.root,
			SourceDir:         p.settings.SearchDir,
			RecordsPath:       p.settings.RecordsFile,
			JustifiedRemovals: opts.AllowRemoved,
			Logger:            p.logger,
		})
		errs = checker.Check(ctx, prior, current)
	}
	if len(errs) == 0 {
		if errs, err = appendOnly(p, cmd); err != nil {
			return err
		}
	}

	result := CheckResult{Records: len(current), Violations: make([]Violation, 0, len(errs))}
	for _, e := range errs {
		v, ok := toViolation(e)
		if !ok {
			return WrapExitError(ExitCommandError, "check failed", e)
		}
		result.Violations = append(result.Violations, v)
	}

	if len(result.Violations) == 0 {
		if opts.Format == "json" {
			return out.Success(result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %d records checked\n", result.Records)
		return nil
	}

	if opts.Format == "json" {
		first := result.Violations[0]
		if err := out.Error(first.Code, fmt.Sprintf("%d violation(s)", len(result.Violations)), result.Violations); err != nil {
			return err
		}
	} else {
		for _, e := range errs {
			fmt.Fprintln(cmd.OutOrStdout(), e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("check found %d violation(s)", len(result.Violations)))
}

// currentHeaders scans the working records file. A file that cannot be
// scanned is reported as a violation, not a command error.
func currentHeaders(p *project) ([]*record.Record, []error, error) {
	data, err := os.ReadFile(filepath.Join(p.root, filepath.FromSlash(p.settings.RecordsFile)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to read records", err)
	}
	headers, err := bib.ScanHeaders(data)
	if err != nil {
		return nil, []error{err}, nil
	}
	return headers, nil, nil
}

// appendOnly verifies that the source files were only appended to.
func appendOnly(p *project, cmd *cobra.Command) ([]error, error) {
	files, err := filepath.Glob(filepath.Join(p.root, p.settings.SearchDir, "*.bib"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list source files", err)
	}
	var errs []error
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read source file", err)
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read source file", err)
		}
		err = p.history.EnsureAppendOnly(cmd.Context(), filepath.ToSlash(rel), data)
		if record.CodeOf(err) == record.CodeAppendOnlyViolation {
			errs = append(errs, err)
			continue
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read source history", err)
		}
	}
	return errs, nil
}

func toViolation(err error) (Violation, bool) {
	var pe *record.PropagatedIDChangeError
	if errors.As(err, &pe) {
		return Violation{
			Code:    "PROPAGATED_ID_CHANGE",
			Message: "ID of a processed record changed",
			Notes:   pe.Notifications,
			Details: map[string]string{"ids": fmt.Sprint(pe.IDs)},
		}, true
	}
	var ie *record.IntegrityError
	if errors.As(err, &ie) {
		return Violation{
			Code:    string(ie.Code),
			Message: ie.Message,
			ID:      ie.ID,
			Origin:  ie.Origin,
			Details: ie.Details,
		}, true
	}
	return Violation{}, false
}
