package bib

import (
	"bytes"
	"strings"

	"github.com/roach88/litstore/internal/record"
)

// Span locates one entry in a record file. The range runs from the "@" of
// the entry to the "@" of the next one, so it includes the blank line that
// separates them.
type Span struct {
	ID        string
	Offset    int
	Length    int
	StartLine int
	EndLine   int // last line of the range, inclusive
}

// End returns the offset just past the span.
func (s Span) End() int { return s.Offset + s.Length }

// Contains reports whether a 1-based line number falls inside the span.
func (s Span) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// Spans returns the span of every record entry in file order.
// The entry ID is read from the "@" line only; field bodies are not parsed.
func Spans(text []byte) ([]Span, error) {
	var spans []Span
	for _, seg := range segments(text) {
		id, ok, err := entryID(seg)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		lines := bytes.Count(seg.text, []byte{'\n'})
		if len(seg.text) > 0 && seg.text[len(seg.text)-1] != '\n' {
			lines++
		}
		spans = append(spans, Span{
			ID:        id,
			Offset:    seg.offset,
			Length:    len(seg.text),
			StartLine: seg.line,
			EndLine:   seg.line + lines - 1,
		})
	}
	return spans, nil
}

// EntryIDs lists the IDs of all record entries, skipping entries whose
// opening line cannot be read. It is used for source files, which are not
// required to follow the record file layout.
func EntryIDs(text []byte) []string {
	var ids []string
	for _, seg := range segments(text) {
		if id, ok, err := entryID(seg); err == nil && ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func entryID(seg segment) (string, bool, error) {
	s := &scanner{src: seg.text, line: seg.line}
	s.pos++
	entryType, err := s.until('{')
	if err != nil {
		return "", false, record.NewMalformedEntryError("", s.errorf("entry type: %v", err))
	}
	if nonRecordTypes[strings.ToLower(strings.TrimSpace(entryType))] {
		return "", false, nil
	}
	id, err := s.until(',')
	if err != nil {
		return "", false, record.NewMalformedEntryError("", s.errorf("entry ID: %v", err))
	}
	return strings.TrimSpace(id), true, nil
}
