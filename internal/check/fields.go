package check

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/litstore/internal/record"
)

// fileRequired are the states in which a record must link its PDF.
var fileRequired = []record.Status{
	record.PDFImported,
	record.PDFNeedsManualPreparation,
	record.PDFPrepared,
	record.RevExcluded,
	record.RevIncluded,
	record.RevSynthesized,
}

// fileLinks reports records that should link a file but do not, and
// otherwise links that do not resolve to a regular file. Paths are
// ";"-separated and relative to the project root.
func (c *Checker) fileLinks(current []*record.Record) ([]error, error) {
	var errs []error
	for _, r := range current {
		if _, ok := r.Get(record.KeyFile); !ok && slices.Contains(fileRequired, r.Status) {
			errs = append(errs, record.NewMissingFileError(r.ID, r.Status))
		}
	}
	if len(errs) > 0 {
		return errs, nil
	}

	for _, r := range current {
		value, ok := r.Get(record.KeyFile)
		if !ok {
			continue
		}
		for _, rel := range strings.Split(value, ";") {
			if rel = strings.TrimSpace(rel); rel == "" {
				continue
			}
			path := rel
			if !filepath.IsAbs(path) {
				path = filepath.Join(c.opts.ProjectRoot, filepath.FromSlash(rel))
			}
			info, err := os.Stat(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				errs = append(errs, record.NewBrokenFileLinkError(r.ID, rel))
			case err != nil:
				return nil, err
			case !info.Mode().IsRegular():
				errs = append(errs, record.NewBrokenFileLinkError(r.ID, rel))
			}
		}
	}
	return errs, nil
}

// screeningCriteria checks screening_criteria values against the criteria
// declared by the first record that carries the field.
//
// Values are "name=yes;name=no;..." with the declared names in order, or
// "NA" when no criteria are declared. An excluded record must satisfy at
// least one criterion and every other record none.
func screeningCriteria(current []*record.Record) []error {
	var declared []string
	declaredSet := false
	var errs []error
	for _, r := range current {
		value, ok := r.Get(record.KeyScreeningCriteria)
		if !ok {
			continue
		}
		if !declaredSet {
			declared, declaredSet = criteriaNames(value), true
		}
		if err := screeningDecision(r, value, declared); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func criteriaNames(value string) []string {
	if value == "NA" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(value, ";") {
		name, _, _ := strings.Cut(part, "=")
		names = append(names, name)
	}
	return names
}

func screeningDecision(r *record.Record, value string, declared []string) error {
	if declared == nil {
		if value != "NA" {
			return record.NewScreeningCriteriaError(r.ID, value, "criteria values given but none declared (want NA)")
		}
		return nil
	}
	parts := strings.Split(value, ";")
	if len(parts) != len(declared) {
		return record.NewScreeningCriteriaError(r.ID, value,
			fmt.Sprintf("does not match criteria (%s)", strings.Join(declared, ", ")))
	}
	var met []string
	for i, part := range parts {
		name, decision, _ := strings.Cut(part, "=")
		if name != declared[i] || (decision != "yes" && decision != "no") {
			return record.NewScreeningCriteriaError(r.ID, value,
				fmt.Sprintf("does not match criteria (%s)", strings.Join(declared, ", ")))
		}
		if decision == "yes" {
			met = append(met, name)
		}
	}
	switch {
	case r.Status == record.RevExcluded && len(met) == 0:
		return record.NewScreeningCriteriaError(r.ID, value, "excluded record meets no exclusion criterion")
	case r.Status != record.RevExcluded && len(met) > 0:
		return record.NewScreeningCriteriaError(r.ID, value,
			fmt.Sprintf("record with status %s meets exclusion criteria (%s)", r.Status, strings.Join(met, ", ")))
	}
	return nil
}
