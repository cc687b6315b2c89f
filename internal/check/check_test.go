package check

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/history"
	"github.com/roach88/litstore/internal/record"
	"github.com/roach88/litstore/internal/testutil"
)

func header(id string, status record.Status, origins ...string) *record.Record {
	return record.New(id, "article", status, origins...)
}

func TestCheck_OriginRemovedAgainstHistory(t *testing.T) {
	ctx := context.Background()
	p := testutil.NewProject(t)
	const path = "data/records.bib"

	p.WriteFile(t, path, string(bib.Render(testutil.Records(
		testutil.Record("Smith2020", record.MDProcessed, []string{"a.bib/X"}),
		testutil.Record("Doe2019", record.MDImported, []string{"a.bib/Y"}),
	))))
	p.Commit(t, "dedupe", path)

	p.WriteFile(t, path, string(bib.Render(testutil.Records(
		testutil.Record("Doe2019", record.MDImported, []string{"a.bib/Y"}),
	))))

	prior, err := history.New(p.Backend, path).PriorHeaders(ctx, "")
	require.NoError(t, err)
	current, err := bib.ScanHeaders([]byte(p.ReadFile(t, path)))
	require.NoError(t, err)

	errs := New(Options{ProjectRoot: p.Root, RecordsPath: path, Logger: testutil.DiscardLogger()}).
		Check(ctx, prior, current)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], record.ErrOriginRemoved)

	var ie *record.IntegrityError
	require.ErrorAs(t, errs[0], &ie)
	assert.Equal(t, "a.bib/X", ie.Origin)
	assert.Equal(t, "Smith2020", ie.ID)
}

func TestCheck_JustifiedRemovalIsLoggedAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	prior := []*record.Record{
		header("Smith2020", record.MDImported, "a.bib/X"),
		header("Doe2019", record.MDImported, "a.bib/Y"),
	}
	current := []*record.Record{header("Doe2019", record.MDImported, "a.bib/Y")}

	errs := New(Options{JustifiedRemovals: []string{"a.bib/X"}, Logger: logger}).
		Check(context.Background(), prior, current)
	require.Empty(t, errs)
	assert.Contains(t, buf.String(), "justified origin removal")
	assert.Contains(t, buf.String(), "origin=a.bib/X")
	assert.Contains(t, buf.String(), "prior_id=Smith2020")
}

func TestCheck_FirstFailingCheckWins(t *testing.T) {
	// Both a duplicate ID and an invalid status: only the duplicate is reported.
	current := []*record.Record{
		header("Smith2020", "bogus", "a.bib/X"),
		header("Smith2020", record.MDImported, "a.bib/Y"),
	}
	errs := New(Options{Logger: testutil.DiscardLogger()}).Check(context.Background(), nil, current)
	require.Len(t, errs, 1)
	assert.Equal(t, record.CodeDuplicateID, record.CodeOf(errs[0]))
}

func TestCheck_ManySourceFiles(t *testing.T) {
	root := t.TempDir()
	var current []*record.Record
	for i := range 40 {
		name := fmt.Sprintf("s%02d.bib", i)
		writeFile(t, root, "search/"+name, fmt.Sprintf("@article{R%d,\n}\n", i))
		current = append(current, header(fmt.Sprintf("Rec%02d", i), record.MDImported, name+"/"+fmt.Sprintf("R%d", i)))
	}
	c := New(Options{ProjectRoot: root, SourceDir: "search", Logger: testutil.DiscardLogger()})
	assert.Empty(t, c.Check(context.Background(), nil, current))

	current[7].Origins = []string{"s07.bib/Nope"}
	errs := c.Check(context.Background(), nil, current)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], record.ErrBrokenOrigin)
}

func TestCheck_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "search/a.bib", "@article{X,\n}\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(Options{ProjectRoot: root, SourceDir: "search", Logger: testutil.DiscardLogger()})
	errs := c.Check(ctx, nil, []*record.Record{header("Smith2020", record.MDImported, "a.bib/X")})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
	assert.True(t, strings.HasPrefix(errs[0].Error(), "check origins:"))
}

func TestCheck_PropagatedIDSkipsGitAndRecordsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/COMMIT_EDITMSG", "Smith2020")
	writeFile(t, root, "data/records.bib", "@article{Smith2020,\n}\n")
	writeFile(t, root, "data/search/other.bib", "@article{Smith2020,\n}\n")
	writeFile(t, root, "data/search/mention.bib", "@article{X,\n  note = {see Smith2020},\n}\n")

	prior := []*record.Record{header("Smith2020", record.RevIncluded, "a.bib/X")}
	current := []*record.Record{header("Smith2020b", record.RevIncluded, "a.bib/X")}

	errs := New(Options{ProjectRoot: root, RecordsPath: "data/records.bib", Logger: testutil.DiscardLogger()}).
		Check(context.Background(), prior, current)
	require.Len(t, errs, 1)
	require.True(t, record.IsPropagatedIDChange(errs[0]))

	var pe *record.PropagatedIDChangeError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, []string{
		"old ID Smith2020 (now Smith2020b) found in file: data/search/other.bib",
		"ID of processed record changed from Smith2020 to Smith2020b",
	}, pe.Notifications)
}

func TestTransitions(t *testing.T) {
	prior := []*record.Record{
		header("A", record.MDImported, "a.bib/1"),
		header("B", record.MDPrepared, "a.bib/2"),
		header("C", record.MDPrepared, "a.bib/3"),
		header("D", record.MDImported, "a.bib/4"),
	}
	current := []*record.Record{
		header("A", record.MDPrepared, "a.bib/1"),
		header("B", record.MDProcessed, "a.bib/2", "a.bib/3"),
		header("D", record.MDImported, "a.bib/4"),
		header("E", record.MDImported, "b.bib/1"),
		header("F", record.MDProcessed, "b.bib/2"),
	}
	assert.Equal(t, map[string]record.Operation{
		"A": record.OpPrep,
		"B": record.OpDedupe,
		"E": record.OpLoad,
		"F": record.OpLoad,
	}, Transitions(prior, current))
}
