package check

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/litstore/internal/record"
)

// Options configures a Checker.
type Options struct {
	// ProjectRoot is scanned for references to changed identifiers.
	ProjectRoot string

	// SourceDir holds the source files origins point into, relative to
	// ProjectRoot. Empty disables the broken-origin check.
	SourceDir string

	// RecordsPath is the records file, relative to ProjectRoot. It is
	// excluded from the reference scan.
	RecordsPath string

	// JustifiedRemovals lists origins that may disappear, e.g. after a
	// reprocess.
	JustifiedRemovals []string

	// Logger receives per-check progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// Checker runs the consistency checks.
type Checker struct {
	opts      Options
	justified map[string]bool
	logger    *slog.Logger
}

// New creates a Checker.
func New(opts Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	justified := make(map[string]bool, len(opts.JustifiedRemovals))
	for _, o := range opts.JustifiedRemovals {
		justified[o] = true
	}
	return &Checker{opts: opts, justified: justified, logger: logger}
}

type step struct {
	name string
	run  func(ctx context.Context, prior, current []*record.Record) ([]error, error)
}

func (c *Checker) steps() []step {
	return []step{
		{"duplicate ids", func(_ context.Context, _, current []*record.Record) ([]error, error) {
			return duplicateIDs(current), nil
		}},
		{"origins", func(ctx context.Context, _, current []*record.Record) ([]error, error) {
			return c.origins(ctx, current)
		}},
		{"unique origins", func(_ context.Context, _, current []*record.Record) ([]error, error) {
			return nonUniqueOrigins(current), nil
		}},
		{"removed origins", func(_ context.Context, prior, current []*record.Record) ([]error, error) {
			return c.removedOrigins(prior, current), nil
		}},
		{"status values", func(_ context.Context, _, current []*record.Record) ([]error, error) {
			return statusValues(current), nil
		}},
		{"status transitions", func(_ context.Context, prior, current []*record.Record) ([]error, error) {
			return statusTransitions(prior, current), nil
		}},
		{"propagated ids", c.propagatedIDs},
		{"file links", func(_ context.Context, _, current []*record.Record) ([]error, error) {
			return c.fileLinks(current)
		}},
		{"screening criteria", func(_ context.Context, _, current []*record.Record) ([]error, error) {
			return screeningCriteria(current), nil
		}},
	}
}

// Check runs the checks in order and returns the violations of the first
// failing one. A nil result means the transition from prior to current is
// consistent. prior is nil for a store that was never committed.
//
// Failures to read the project (as opposed to violations) are returned
// as the only element, wrapped with the check's name.
func (c *Checker) Check(ctx context.Context, prior, current []*record.Record) []error {
	for _, s := range c.steps() {
		violations, err := s.run(ctx, prior, current)
		if err != nil {
			return []error{fmt.Errorf("check %s: %w", s.name, err)}
		}
		if len(violations) > 0 {
			c.logger.Debug("check failed", "check", s.name, "violations", len(violations))
			return violations
		}
		c.logger.Debug("check passed", "check", s.name)
	}
	return nil
}

func duplicateIDs(current []*record.Record) []error {
	counts := make(map[string]int)
	var order []string
	for _, r := range current {
		if counts[r.ID] == 0 {
			order = append(order, r.ID)
		}
		counts[r.ID]++
	}
	var errs []error
	for _, id := range order {
		if counts[id] > 1 {
			errs = append(errs, record.NewDuplicateIDError(id))
		}
	}
	return errs
}

func nonUniqueOrigins(current []*record.Record) []error {
	// A record listing an origin twice appears twice.
	owners := make(map[string][]string)
	for _, r := range current {
		for _, o := range r.Origins {
			owners[o] = append(owners[o], r.ID)
		}
	}
	var errs []error
	for _, o := range slices.Sorted(maps.Keys(owners)) {
		if len(owners[o]) > 1 {
			errs = append(errs, record.NewNonUniqueOriginError(o, owners[o]...))
		}
	}
	return errs
}

func (c *Checker) removedOrigins(prior, current []*record.Record) []error {
	present := make(map[string]bool)
	for _, r := range current {
		for _, o := range r.Origins {
			present[o] = true
		}
	}
	priorOwner := originOwners(prior)
	var errs []error
	for _, o := range slices.Sorted(maps.Keys(priorOwner)) {
		if present[o] {
			continue
		}
		if c.justified[o] {
			c.logger.Warn("justified origin removal", "origin", o, "prior_id", priorOwner[o].ID)
			continue
		}
		errs = append(errs, record.NewOriginRemovedError(o, priorOwner[o].ID))
	}
	return errs
}

func statusValues(current []*record.Record) []error {
	var errs []error
	for _, r := range current {
		if !r.Status.Valid() {
			errs = append(errs, record.NewInvalidStatusValueError(r.ID, r.Status))
		}
	}
	return errs
}

func statusTransitions(prior, current []*record.Record) []error {
	priorOwner := originOwners(prior)
	var errs []error
	for _, r := range current {
		var changed []string
		var from []record.Status
		for _, o := range r.Origins {
			p, ok := priorOwner[o]
			if !ok || p.Status == r.Status {
				continue
			}
			changed = append(changed, o)
			if !slices.Contains(from, p.Status) {
				from = append(from, p.Status)
			}
		}
		switch {
		case len(from) > 1:
			errs = append(errs, record.NewAmbiguousTransitionError(r.ID, from))
		case len(from) == 1 && !record.ValidTransition(from[0], r.Status):
			errs = append(errs, record.NewIllegalTransitionError(r.ID, changed[0], from[0], r.Status))
		}
	}
	return errs
}

// originOwners maps every origin to the record that holds it. With
// duplicates, the last record wins.
func originOwners(records []*record.Record) map[string]*record.Record {
	owners := make(map[string]*record.Record)
	for _, r := range records {
		for _, o := range r.Origins {
			owners[o] = r
		}
	}
	return owners
}

// Transitions names the operation that moved each current record from its
// prior status. Records with no origin in prior map to OpLoad. Records
// whose status did not change are omitted, and so are illegal or
// ambiguous transitions, which Check reports.
func Transitions(prior, current []*record.Record) map[string]record.Operation {
	priorOwner := originOwners(prior)
	ops := make(map[string]record.Operation)
	for _, r := range current {
		known := false
		var from []record.Status
		for _, o := range r.Origins {
			p, ok := priorOwner[o]
			if !ok {
				continue
			}
			known = true
			if p.Status != r.Status && !slices.Contains(from, p.Status) {
				from = append(from, p.Status)
			}
		}
		if !known {
			ops[r.ID] = record.OpLoad
			continue
		}
		if len(from) != 1 {
			continue
		}
		if op, ok := record.TransitionOperation(from[0], r.Status); ok {
			ops[r.ID] = op
		}
	}
	return ops
}
