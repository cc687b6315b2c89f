package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
	"github.com/roach88/litstore/internal/testutil"
)

const recordsPath = "data/records.bib"

func commitRecords(t *testing.T, p *testutil.Project, msg string, rs ...*record.Record) string {
	t.Helper()
	p.WriteFile(t, recordsPath, string(bib.Render(testutil.Records(rs...))))
	return p.Commit(t, msg, recordsPath)
}

func TestOriginStates(t *testing.T) {
	ctx := context.Background()
	p := testutil.NewProject(t)
	h := New(p.Backend, recordsPath)

	states, err := h.OriginStates(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, states, "no commits yet")

	first := commitRecords(t, p, "import",
		testutil.Record("Smith2020", record.MDImported, []string{"a.bib/X"}),
	)
	commitRecords(t, p, "merge",
		testutil.Record("Smith2020", record.MDProcessed, []string{"a.bib/X", "b.bib/Y"}),
	)

	states, err = h.OriginStates(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]record.Status{
		"a.bib/X": record.MDProcessed,
		"b.bib/Y": record.MDProcessed,
	}, states)

	states, err = h.OriginStates(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, map[string]record.Status{"a.bib/X": record.MDImported}, states)
}

func TestPriorHeaders_KeepsDuplicates(t *testing.T) {
	p := testutil.NewProject(t)
	entry := string(bib.RenderEntry(testutil.Record("Smith2020", record.MDImported, []string{"a.bib/X"})))
	p.WriteFile(t, recordsPath, entry+"\n"+entry)
	p.Commit(t, "broken", recordsPath)

	headers, err := New(p.Backend, recordsPath).PriorHeaders(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "Smith2020", headers[0].ID)
	assert.Equal(t, "Smith2020", headers[1].ID)
}

func TestIterate(t *testing.T) {
	ctx := context.Background()
	p := testutil.NewProject(t)
	h := New(p.Backend, recordsPath)

	c1 := commitRecords(t, p, "one", testutil.Record("A2020", record.MDImported, []string{"a.bib/1"}))
	p.WriteFile(t, "README.md", "unrelated")
	p.Commit(t, "docs", "README.md")
	c2 := commitRecords(t, p, "two",
		testutil.Record("A2020", record.MDImported, []string{"a.bib/1"}),
		testutil.Record("B2021", record.MDImported, []string{"a.bib/2"}),
	)

	var hashes []string
	var sizes []int
	for snap, err := range h.Iterate(ctx, "") {
		require.NoError(t, err)
		hashes = append(hashes, snap.Commit.Hash)
		sizes = append(sizes, len(snap.Records))
	}
	assert.Equal(t, []string{c1, c2}, hashes)
	assert.Equal(t, []int{1, 2}, sizes)

	hashes = nil
	for snap, err := range h.Iterate(ctx, c2) {
		require.NoError(t, err)
		hashes = append(hashes, snap.Commit.Hash)
	}
	assert.Equal(t, []string{c2}, hashes)
}

func TestIterate_UnknownStart(t *testing.T) {
	p := testutil.NewProject(t)
	commitRecords(t, p, "one", testutil.Record("A2020", record.MDImported, []string{"a.bib/1"}))

	var errs []error
	for _, err := range New(p.Backend, recordsPath).Iterate(context.Background(), "deadbeef") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "deadbeef")
}

func TestIterate_StopsEarly(t *testing.T) {
	p := testutil.NewProject(t)
	commitRecords(t, p, "one", testutil.Record("A2020", record.MDImported, []string{"a.bib/1"}))
	commitRecords(t, p, "two", testutil.Record("A2020", record.MDPrepared, []string{"a.bib/1"}))

	n := 0
	for range New(p.Backend, recordsPath).Iterate(context.Background(), "") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestIterate_DeletedFile(t *testing.T) {
	ctx := context.Background()
	p := testutil.NewProject(t)
	commitRecords(t, p, "one", testutil.Record("A2020", record.MDImported, []string{"a.bib/1"}))
	require.NoError(t, p.Backend.Remove(ctx, recordsPath))
	p.Commit(t, "reprocess all")

	var sizes []int
	for snap, err := range New(p.Backend, recordsPath).Iterate(ctx, "") {
		require.NoError(t, err)
		sizes = append(sizes, len(snap.Records))
	}
	assert.Equal(t, []int{1, 0}, sizes)
}
