package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/record"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func work(id, author, title, year string) *record.Record {
	r := record.New(id, "article", record.MDProcessed, "a.bib/"+id)
	r.Set(record.FieldAuthor, author)
	r.Set(record.FieldTitle, title)
	r.Set(record.FieldYear, year)
	return r
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer ix.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	var mode string
	require.NoError(t, ix.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	for i := 0; i < 3; i++ {
		ix, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		ix.Close()
	}
}

func TestIndex_AddRetrieve(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)

	curated := work("Webster2002", "Webster, J. and Watson, R.", "Analyzing the Past", "2002")
	require.NoError(t, ix.Add(ctx, curated))

	// Same work as formatted by another source.
	candidate := work("tmp", "webster, j.  and watson, r.", "Analyzing the {Past}", "2002")
	id, err := ix.Retrieve(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, "Webster2002", id)

	other := work("tmp", "Doe, J.", "Something Else", "2002")
	_, err = ix.Retrieve(ctx, other)
	assert.ErrorIs(t, err, ErrNotInIndex)

	// Re-adding replaces the ID.
	curated.ID = "Webster2002a"
	require.NoError(t, ix.Add(ctx, curated))
	id, err = ix.Retrieve(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, "Webster2002a", id)

	n, err := ix.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_AddAllSkipsIncomplete(t *testing.T) {
	ctx := context.Background()
	ix := openTestIndex(t)

	incomplete := record.New("NoYear", "article", record.MDProcessed, "a.bib/1")
	incomplete.Set(record.FieldAuthor, "Doe, J.")

	n, err := ix.AddAll(ctx, []*record.Record{
		work("A2020", "A, B.", "T1", "2020"),
		work("C2021", "C, D.", "T2", "2021"),
		incomplete,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ix.Retrieve(ctx, incomplete)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(work("x", "M\u00fcller, K.", "Title", "2020"))
	require.NoError(t, err)
	// Decomposed u + combining diaeresis normalizes to the same text.
	b, err := Fingerprint(work("y", "Mu\u0308ller, K.", "TITLE", "2020"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Fingerprint(work("z", "M\u00fcller, K.", "Title", "2021"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = Fingerprint(record.New("n", "misc", record.MDImported))
	assert.ErrorIs(t, err, ErrNotEnoughData)
}
