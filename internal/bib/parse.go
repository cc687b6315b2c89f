package bib

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/litstore/internal/record"
)

// Parse reads every entry of a record file.
//
// Errors:
//   - MALFORMED_ENTRY if an entry cannot be read, lacks a status, or has an
//     invalid key or an empty value
//   - DUPLICATE_ID if two entries share an ID
//   - NON_UNIQUE_ORIGIN if two entries claim the same origin
func Parse(text []byte) (map[string]*record.Record, error) {
	records := make(map[string]*record.Record)
	owners := make(map[string]string)
	for _, seg := range segments(text) {
		r, err := parseEntry(seg, false)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		if _, ok := records[r.ID]; ok {
			return nil, record.NewDuplicateIDError(r.ID)
		}
		for _, o := range r.Origins {
			if other, ok := owners[o]; ok {
				return nil, record.NewNonUniqueOriginError(o, other, r.ID)
			}
			owners[o] = r.ID
		}
		records[r.ID] = r
	}
	return records, nil
}

// segment is the text of one entry, from its "@" line up to the next one.
type segment struct {
	text   []byte
	offset int
	line   int // 1-based line of the "@"
}

// segments splits text at every line that starts with "@". Text before the
// first entry is ignored.
func segments(text []byte) []segment {
	var segs []segment
	start := -1
	startLine := 0
	line := 1
	for pos := 0; pos < len(text); {
		if text[pos] == '@' {
			if start >= 0 {
				segs = append(segs, segment{text: text[start:pos], offset: start, line: startLine})
			}
			start, startLine = pos, line
		}
		nl := bytes.IndexByte(text[pos:], '\n')
		if nl < 0 {
			break
		}
		pos += nl + 1
		line++
	}
	if start >= 0 {
		segs = append(segs, segment{text: text[start:], offset: start, line: startLine})
	}
	return segs
}

// nonRecordTypes are bibtex entry types that do not hold records.
var nonRecordTypes = map[string]bool{"comment": true, "preamble": true, "string": true}

// parseEntry reads one entry. With headerOnly, reading stops at the first
// key that is not a header key. It returns nil for comment-like entries.
func parseEntry(seg segment, headerOnly bool) (*record.Record, error) {
	s := &scanner{src: seg.text, line: seg.line}
	s.pos++ // '@'

	entryType, err := s.until('{')
	if err != nil {
		return nil, record.NewMalformedEntryError("", s.errorf("entry type: %v", err))
	}
	entryType = strings.TrimSpace(entryType)
	if nonRecordTypes[strings.ToLower(entryType)] {
		return nil, nil
	}

	id, err := s.until(',')
	if err != nil {
		return nil, record.NewMalformedEntryError("", s.errorf("entry ID: %v", err))
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, " \t\n{}") {
		return nil, record.NewMalformedEntryError(id, s.errorf("invalid entry ID %q", id))
	}

	r := record.New(id, entryType, "")
	statusSeen := false
	seen := make(map[string]bool)
	for {
		s.skipSpace()
		if s.eof() {
			return nil, record.NewMalformedEntryError(id, s.errorf("unterminated entry"))
		}
		if s.peek() == '}' {
			break
		}
		key, err := s.until('=')
		if err != nil {
			return nil, record.NewMalformedEntryError(id, s.errorf("field key: %v", err))
		}
		key = strings.TrimSpace(key)
		if headerOnly && !isHeaderKey(key) {
			break
		}
		value, err := s.value()
		if err != nil {
			return nil, record.NewMalformedEntryError(id, s.errorf("field %s: %v", key, err))
		}
		if seen[key] {
			return nil, record.NewMalformedEntryError(id, s.errorf("field %s appears twice", key))
		}
		seen[key] = true
		if err := record.ValidateKey(key); err != nil {
			return nil, record.NewMalformedEntryError(id, s.errorf("%v", err))
		}
		if key == record.KeyID || key == record.KeyEntryType {
			return nil, record.NewMalformedEntryError(id, s.errorf("reserved key %s in entry body", key))
		}
		if value == "" {
			return nil, record.NewMalformedEntryError(id, s.errorf("field %s has an empty value", key))
		}

		switch key {
		case record.KeyOrigin:
			r.Origins = parseOrigins(value)
		case record.KeyStatus:
			r.Status = record.Status(value)
			statusSeen = true
		case record.KeyMasterdataProvenance:
			if !headerOnly {
				r.MasterdataProvenance = parseProvenance(value)
			}
		case record.KeyDataProvenance:
			if !headerOnly {
				r.DataProvenance = parseProvenance(value)
			}
		default:
			r.Fields[key] = value
		}
	}
	if !statusSeen && !headerOnly {
		return nil, record.NewMalformedEntryError(id, fmt.Sprintf("entry at line %d has no %s field", seg.line, record.KeyStatus))
	}
	return r, nil
}

func isHeaderKey(key string) bool {
	rank, ok := fieldRank[key]
	return ok && rank < len(headerKeys)
}

// parseOrigins splits a ";"-terminated origin list.
func parseOrigins(value string) []string {
	var origins []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	return origins
}

// parseProvenance reads "field:source;note;" lines.
func parseProvenance(value string) record.Provenance {
	p := make(record.Provenance)
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		field, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		rest = strings.TrimSuffix(rest, ";")
		source, note, _ := strings.Cut(rest, ";")
		p[strings.TrimSpace(field)] = record.ProvenanceEntry{Source: source, Note: note}
	}
	return p
}

// scanner walks the bytes of a single entry.
type scanner struct {
	src  []byte
	pos  int
	line int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte { return s.src[s.pos] }

func (s *scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	if c == '\n' {
		s.line++
	}
	return c
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n':
			s.advance()
		default:
			return
		}
	}
}

// until consumes up to and including delim and returns the text before it.
func (s *scanner) until(delim byte) (string, error) {
	start := s.pos
	for !s.eof() {
		if s.peek() == delim {
			text := string(s.src[start:s.pos])
			s.advance()
			return text, nil
		}
		if s.peek() == '\n' && delim != '=' && delim != '}' {
			return "", fmt.Errorf("expected %q before end of line", delim)
		}
		s.advance()
	}
	return "", fmt.Errorf("expected %q", delim)
}

// value reads a braced, quoted or bare field value and the separator after it.
func (s *scanner) value() (string, error) {
	s.skipSpace()
	if s.eof() {
		return "", fmt.Errorf("missing value")
	}
	var v string
	switch s.peek() {
	case '{':
		s.advance()
		start := s.pos
		depth := 1
		for depth > 0 {
			if s.eof() {
				return "", fmt.Errorf("unterminated value")
			}
			switch s.advance() {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		v = string(s.src[start : s.pos-1])
	case '"':
		s.advance()
		start := s.pos
		depth := 0
		for {
			if s.eof() {
				return "", fmt.Errorf("unterminated value")
			}
			c := s.advance()
			if c == '{' {
				depth++
			} else if c == '}' {
				depth--
			} else if c == '"' && depth == 0 {
				break
			}
		}
		v = string(s.src[start : s.pos-1])
	default:
		start := s.pos
		for !s.eof() && s.peek() != ',' && s.peek() != '\n' && s.peek() != '}' {
			s.advance()
		}
		v = strings.TrimSpace(string(s.src[start:s.pos]))
	}
	s.skipSpace()
	if !s.eof() && s.peek() == ',' {
		s.advance()
	}
	return v, nil
}

func (s *scanner) errorf(format string, args ...any) string {
	return fmt.Sprintf("line %d: ", s.line) + fmt.Sprintf(format, args...)
}
