// Package ids assigns human-readable, collision-free record IDs.
//
// An ID is taken from the curated index when the work is known there, and
// otherwise synthesized from family names and year ("Smith2020",
// "SmithDoeRoeEtAl2020"). Collisions are resolved by appending letter
// suffixes in a fixed order: a..z, then aa..zz, and so on.
package ids

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/litstore/internal/index"
	"github.com/roach88/litstore/internal/record"
)

// Pattern selects how IDs are synthesized.
type Pattern string

const (
	// FirstAuthorYear uses the first family name and the year.
	FirstAuthorYear Pattern = "first_author_year"
	// ThreeAuthorsYear uses up to three family names, "EtAl" beyond three, and the year.
	ThreeAuthorsYear Pattern = "three_authors_year"
)

// ParsePattern validates a pattern name.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(s) {
	case FirstAuthorYear, ThreeAuthorsYear:
		return Pattern(s), nil
	}
	return "", fmt.Errorf("unknown ID pattern %q", s)
}

// Lookup finds the curated ID of a record. *index.Index implements it.
type Lookup interface {
	Retrieve(ctx context.Context, r *record.Record) (string, error)
}

// Allocator computes record IDs.
type Allocator struct {
	Pattern Pattern

	// Index is consulted first when set.
	Index Lookup

	// CuratedMasterdata marks the project itself as a curated source; its
	// IDs are never copied from the index.
	CuratedMasterdata bool
}

var (
	parenthetical = regexp.MustCompile(`\(.*\)`)
	nonAlnum      = regexp.MustCompile(`[^0-9a-zA-Z]+`)
	stripAccents  = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// TempID returns the canonical ID for r, ignoring collisions.
func (a *Allocator) TempID(ctx context.Context, r *record.Record) (string, error) {
	if a.Index != nil && !a.CuratedMasterdata {
		id, err := a.Index.Retrieve(ctx, r)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, index.ErrNotInIndex), errors.Is(err, index.ErrNotEnoughData):
		default:
			return "", fmt.Errorf("temp id for %s: %w", r.ID, err)
		}
	}

	names := familyNames(r)
	var b strings.Builder
	switch a.Pattern {
	case ThreeAuthorsYear:
		for i, name := range names {
			if i == 3 {
				b.WriteString("EtAl")
				break
			}
			b.WriteString(name)
		}
	default:
		b.WriteString(names[0])
	}
	year, ok := r.Get(record.FieldYear)
	if !ok {
		year = "NoYear"
	}
	b.WriteString(year)

	return Normalize(b.String()), nil
}

// familyNames returns the family name of every author, falling back to
// the editors and then to "Anonymous".
func familyNames(r *record.Record) []string {
	people, ok := r.Get(record.FieldAuthor)
	if !ok {
		people, ok = r.Get(record.FieldEditor)
	}
	if !ok || strings.TrimSpace(people) == "" {
		return []string{"Anonymous"}
	}

	var names []string
	for _, person := range strings.Split(people, " and ") {
		person = strings.TrimSpace(person)
		var family string
		if before, _, found := strings.Cut(person, ","); found {
			family = before
		} else {
			family, _, _ = strings.Cut(person, " ")
		}
		names = append(names, strings.ReplaceAll(family, " ", ""))
	}
	return names
}

// Normalize strips accents and parentheticals, drops every character
// outside [0-9a-zA-Z] and capitalizes all-upper-case results.
func Normalize(id string) string {
	if s, _, err := transform.String(stripAccents, id); err == nil {
		id = s
	}
	id = parenthetical.ReplaceAllString(id, "")
	id = nonAlnum.ReplaceAllString(id, "")
	if isUpper(id) {
		id = strings.ToUpper(id[:1]) + strings.ToLower(id[1:])
	}
	return id
}

// isUpper reports whether s has letters and none of them is lower-case.
func isUpper(s string) bool {
	letters := false
	for _, c := range s {
		if unicode.IsLower(c) {
			return false
		}
		if unicode.IsLetter(c) {
			letters = true
		}
	}
	return letters
}

// Suffix returns the n-th collision suffix (0 → "a", 25 → "z", 26 → "aa").
func Suffix(n int) string {
	var b []byte
	for n >= 0 {
		b = append(b, byte('a'+n%26))
		n = n/26 - 1
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// NextUnique returns temp, or temp with the first suffix that makes it
// unique among existing. Comparison is case-insensitive.
func NextUnique(temp string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, id := range existing {
		taken[strings.ToLower(id)] = true
	}
	candidate := temp
	for n := 0; taken[strings.ToLower(candidate)]; n++ {
		candidate = temp + Suffix(n)
	}
	return candidate
}

// Generate returns a unique ID for r given the IDs of all other records.
//
// Returns a PropagatedIDChangeError if r's status is md_processed or later,
// because its ID may already be cited elsewhere.
func (a *Allocator) Generate(ctx context.Context, r *record.Record, existing []string) (string, error) {
	if r.Propagated() {
		return "", &record.PropagatedIDChangeError{IDs: []string{r.ID}}
	}
	temp, err := a.TempID(ctx, r)
	if err != nil {
		return "", err
	}
	return NextUnique(temp, existing), nil
}
