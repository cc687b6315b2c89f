package store

import (
	"testing"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
	"github.com/roach88/litstore/internal/testutil"
)

// createTestStore creates a store on a fresh memory-backed project.
func createTestStore(t *testing.T) (*Store, *testutil.Project) {
	t.Helper()
	p := testutil.NewProject(t)
	s := New(p.Root, p.Backend, WithLogger(testutil.DiscardLogger()))
	return s, p
}

// seedRecords writes records to the records file and commits it.
func seedRecords(t *testing.T, p *testutil.Project, rs ...*record.Record) string {
	t.Helper()
	p.WriteFile(t, DefaultRecordsPath, string(bib.Render(testutil.Records(rs...))))
	return p.Commit(t, "seed", DefaultRecordsPath)
}

func smith() *record.Record {
	return testutil.Record("Smith2020", record.MDImported, []string{"a.bib/X"},
		"author", "Smith, J.",
		"title", "A Title",
		"year", "2020")
}

func doe() *record.Record {
	return testutil.Record("Doe2019", record.RevIncluded, []string{"b.bib/Y"},
		"author", "Doe, Jane",
		"title", "Another Title",
		"year", "2019")
}

func zhang() *record.Record {
	return testutil.Record("Zhang2021", record.MDPrepared, []string{"c.bib/Z"},
		"author", "Zhang, Wei",
		"title", "Third",
		"year", "2021")
}
