package bib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/record"
)

func TestExtractHeaders(t *testing.T) {
	headers, err := ExtractHeaders(readFixture(t, "records.bib"))
	require.NoError(t, err)
	require.Len(t, headers, 3)

	doe := headers["Doe2019"]
	assert.Equal(t, record.MDProcessed, doe.Status)
	assert.Equal(t, []string{"crossref.bib/cr0001", "dblp.bib/journals/x/Doe19"}, doe.Origins)
	assert.Nil(t, doe.MasterdataProvenance)
	assert.Empty(t, doe.Fields)

	zhang := headers["Zhang2021"]
	assert.Equal(t, map[string]string{
		record.KeyScreeningCriteria: "scope=in",
		record.KeyFile:              "data/pdfs/Zhang2021.pdf",
	}, zhang.Fields)
}

func TestExtractHeaders_SkipsFieldBodies(t *testing.T) {
	// A broken body after the header does not matter for the header scan.
	text := "@article{A,\n" +
		"  colrev_origin = {a.bib/1;},\n" +
		"  colrev_status = {md_imported},\n" +
		"  title = {unterminated\n" +
		"}\n"
	headers, err := ExtractHeaders([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, record.MDImported, headers["A"].Status)

	_, err = Parse([]byte(text))
	assert.ErrorIs(t, err, record.ErrMalformedEntry)
}

func TestExtractHeaders_Errors(t *testing.T) {
	_, err := ExtractHeaders([]byte("@article{A,\n  colrev_origin = {a.bib/1;},\n  title = {T},\n}\n"))
	assert.ErrorIs(t, err, record.ErrMalformedEntry)

	dup := "@article{A,\n  colrev_status = {md_imported},\n}\n\n@article{A,\n  colrev_status = {md_imported},\n}\n"
	_, err = ExtractHeaders([]byte(dup))
	assert.ErrorIs(t, err, record.ErrDuplicateID)
}

func TestScanHeaders_KeepsViolations(t *testing.T) {
	text := "@article{A,\n  colrev_origin = {a.bib/1;},\n  colrev_status = {md_imported},\n}\n\n" +
		"@article{A,\n  colrev_origin = {a.bib/1;},\n}\n"

	headers, err := ScanHeaders([]byte(text))
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "A", headers[0].ID)
	assert.Equal(t, "A", headers[1].ID)
	assert.Equal(t, record.Status(""), headers[1].Status)
}
