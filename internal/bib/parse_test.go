package bib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/record"
)

func TestParse_Fields(t *testing.T) {
	records, err := Parse(readFixture(t, "records.bib"))
	require.NoError(t, err)

	doe := records["Doe2019"]
	require.NotNil(t, doe)
	assert.Equal(t, "article", doe.EntryType)
	assert.Equal(t, record.MDProcessed, doe.Status)
	assert.Equal(t, []string{"crossref.bib/cr0001", "dblp.bib/journals/x/Doe19"}, doe.Origins)
	assert.Equal(t, record.ProvenanceEntry{Source: "dblp.bib/journals/x/Doe19", Note: "quality_defect"},
		doe.MasterdataProvenance[record.FieldTitle])
	assert.Equal(t, record.ProvenanceEntry{Source: "crossref.bib/cr0001"},
		doe.DataProvenance[record.FieldDOI])
	assert.Equal(t, "Journal of {IS} Research", doe.Fields[record.FieldJournal])
	assert.NotContains(t, doe.Fields, record.KeyStatus)
	assert.NotContains(t, doe.Fields, record.KeyOrigin)

	zhang := records["Zhang2021"]
	require.NotNil(t, zhang)
	assert.Equal(t, "data/pdfs/Zhang2021.pdf", zhang.Fields[record.KeyFile])
	assert.Nil(t, zhang.MasterdataProvenance)
}

func TestParse_LenientValueForms(t *testing.T) {
	text := "% leading comment\n" +
		"@comment{ignored}\n" +
		"@Article{Lee2018,\n" +
		"  colrev_status = {md_retrieved},\n" +
		"  colrev_origin = {x.bib/1;},\n" +
		"  year = 2018,\n" +
		"  title = \"Quoted {Value}\"\n" +
		"}\n"

	records, err := Parse([]byte(text))
	require.NoError(t, err)
	require.Contains(t, records, "Lee2018")
	lee := records["Lee2018"]
	assert.Equal(t, "Article", lee.EntryType)
	assert.Equal(t, "2018", lee.Fields[record.FieldYear])
	assert.Equal(t, "Quoted {Value}", lee.Fields[record.FieldTitle])
	assert.Equal(t, []string{"x.bib/1"}, lee.Origins)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing status",
			text:    "@article{A,\n  colrev_origin = {a.bib/1;},\n  title = {T},\n}\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "no colrev_status",
		},
		{
			name: "duplicate id",
			text: "@article{A,\n  colrev_origin = {a.bib/1;},\n  colrev_status = {md_imported},\n}\n\n" +
				"@article{A,\n  colrev_origin = {a.bib/2;},\n  colrev_status = {md_imported},\n}\n",
			wantErr: record.ErrDuplicateID,
		},
		{
			name: "shared origin",
			text: "@article{A,\n  colrev_origin = {src.bib/Id1;},\n  colrev_status = {md_imported},\n}\n\n" +
				"@article{B,\n  colrev_origin = {src.bib/Id1;},\n  colrev_status = {md_imported},\n}\n",
			wantErr: record.ErrNonUniqueOrigin,
			wantMsg: "src.bib/Id1",
		},
		{
			name:    "upper-case key",
			text:    "@article{A,\n  colrev_status = {md_imported},\n  Title = {T},\n}\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "not lower-case",
		},
		{
			name:    "key with space",
			text:    "@article{A,\n  colrev_status = {md_imported},\n  my title = {T},\n}\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "whitespace",
		},
		{
			name:    "empty value",
			text:    "@article{A,\n  colrev_status = {md_imported},\n  title = {},\n}\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "empty value",
		},
		{
			name:    "unterminated value",
			text:    "@article{A,\n  colrev_status = {md_imported},\n  title = {T,\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "unterminated",
		},
		{
			name:    "unterminated entry",
			text:    "@article{A,\n  colrev_status = {md_imported},\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "unterminated entry",
		},
		{
			name:    "missing id",
			text:    "@article{,\n  colrev_status = {md_imported},\n}\n",
			wantErr: record.ErrMalformedEntry,
		},
		{
			name:    "repeated key",
			text:    "@article{A,\n  colrev_status = {md_imported},\n  title = {T},\n  title = {U},\n}\n",
			wantErr: record.ErrMalformedEntry,
			wantMsg: "appears twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParse_UnknownStatusIsKept(t *testing.T) {
	records, err := Parse([]byte("@article{A,\n  colrev_origin = {a.bib/1;},\n  colrev_status = {md_bogus},\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, record.Status("md_bogus"), records["A"].Status)
	assert.False(t, records["A"].Status.Valid())
}
