package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
	"github.com/roach88/litstore/internal/testutil"
)

func TestStore_RequiresNotify(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	calls := map[string]func() error{
		"Load": func() error { _, err := s.Load(ctx, false); return err },
		"Save": func() error { return s.Save(ctx, nil, false) },
		"SetIDs": func() error {
			_, err := s.SetIDs(ctx, map[string]*record.Record{}, nil)
			return err
		},
		"Reprocess": func() error { return s.Reprocess(ctx, "X") },
		"Import": func() error {
			_, err := s.Import(ctx, map[string]*record.Record{}, smith())
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.ErrorIs(t, err, record.ErrNotNotified)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestStore_Notify(t *testing.T) {
	s, _ := createTestStore(t)

	id := s.Notify(record.OpPrep)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	op, opID := s.Operation()
	assert.Equal(t, record.OpPrep, op)
	assert.Equal(t, id, opID)

	assert.NotEqual(t, id, s.Notify(record.OpDedupe))
}

func TestStore_LoadMissingFile(t *testing.T) {
	s, _ := createTestStore(t)
	s.Notify(record.OpLoad)

	records, err := s.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	s.Notify(record.OpLoad)

	want := testutil.Records(smith(), doe())
	require.NoError(t, s.Save(ctx, want, false))

	got, err := s.Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	headers, err := s.Load(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, record.RevIncluded, headers["Doe2019"].Status)
	assert.Empty(t, headers["Doe2019"].Fields)

	staged, err := s.HasChanges(ctx, backend.ScopeStaged)
	require.NoError(t, err)
	assert.True(t, staged, "no commit yet")
}

func TestStore_SaveStagesFile(t *testing.T) {
	ctx := context.Background()
	s, p := createTestStore(t)
	seedRecords(t, p, smith())

	changed, err := s.HasChanges(ctx, backend.ScopeAll)
	require.NoError(t, err)
	assert.False(t, changed)

	s.Notify(record.OpPrep)
	r := smith()
	r.Status = record.MDPrepared
	require.NoError(t, s.Save(ctx, testutil.Records(r), true))

	staged, err := s.HasChanges(ctx, backend.ScopeStaged)
	require.NoError(t, err)
	assert.True(t, staged)
	unstaged, err := s.HasChanges(ctx, backend.ScopeUnstaged)
	require.NoError(t, err)
	assert.False(t, unstaged)
}

func TestStore_LoadReportsIntegrityErrors(t *testing.T) {
	s, p := createTestStore(t)
	a := testutil.Record("A", record.MDImported, []string{"src.bib/Id1"})
	b := testutil.Record("B", record.MDImported, []string{"src.bib/Id1"})
	p.WriteFile(t, DefaultRecordsPath, string(bib.RenderEntry(a))+"\n"+string(bib.RenderEntry(b)))

	s.Notify(record.OpLoad)
	_, err := s.Load(context.Background(), false)
	assert.ErrorIs(t, err, record.ErrNonUniqueOrigin)
	assert.Contains(t, err.Error(), "src.bib/Id1")
}

func TestStore_PartialSave(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *record.Record)
	}{
		{"same length", func(r *record.Record) { r.Set("title", "B Title") }},
		{"longer", func(r *record.Record) { r.Set("title", "A Considerably Longer Title") }},
		{"shorter", func(r *record.Record) { r.Set("title", "T") }},
		{"new field", func(r *record.Record) { r.Set("doi", "10.1/abc") }},
		{"removed field", func(r *record.Record) { r.Set("title", "") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, p := createTestStore(t)
			seedRecords(t, p, doe(), smith(), zhang())
			before := p.ReadFile(t, DefaultRecordsPath)

			s.Notify(record.OpPrep)
			changed := smith()
			tt.mutate(changed)
			require.NoError(t, s.Save(ctx, testutil.Records(changed), true))

			after := p.ReadFile(t, DefaultRecordsPath)
			want := testutil.Records(doe(), changed, zhang())
			assert.Equal(t, string(bib.Render(want)), after)

			// Entries before the patched one keep their bytes and offsets.
			doeEntry := string(bib.RenderEntry(doe()))
			assert.True(t, strings.HasPrefix(before, doeEntry))
			assert.True(t, strings.HasPrefix(after, doeEntry))

			got, err := s.Load(ctx, false)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_PartialSaveSeveralRecords(t *testing.T) {
	ctx := context.Background()
	s, p := createTestStore(t)
	seedRecords(t, p, doe(), smith(), zhang())

	s.Notify(record.OpPrep)
	longer := doe()
	longer.Set("title", "Another Title, Now With A Much Longer Subtitle")
	shorter := smith()
	shorter.Set("title", "T")
	grown := zhang()
	grown.Set("doi", "10.1/zhang")
	grown.Set("journal", "Journal of Records")
	want := testutil.Records(longer, shorter, grown)
	require.NoError(t, s.Save(ctx, want, true))

	assert.Equal(t, string(bib.Render(want)), p.ReadFile(t, DefaultRecordsPath))

	got, err := s.Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_SaveRejectsUnstorableRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *record.Record)
	}{
		{"line starting with @", func(r *record.Record) { r.Set("abstract", "intro\n@misc{Ghost,") }},
		{"unbalanced brace", func(r *record.Record) { r.Set("title", "a } b") }},
		{"upper-case key", func(r *record.Record) { r.Set("Title", "A Title") }},
		{"origin with separator", func(r *record.Record) { r.Origins = []string{"a.bib/X;Y"} }},
		{"origin listed twice", func(r *record.Record) { r.Origins = []string{"a.bib/X", "a.bib/X"} }},
	}
	for _, tt := range tests {
		for _, partial := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/partial=%t", tt.name, partial), func(t *testing.T) {
				ctx := context.Background()
				s, p := createTestStore(t)
				seedRecords(t, p, doe(), smith(), zhang())
				before := p.ReadFile(t, DefaultRecordsPath)

				s.Notify(record.OpPrep)
				bad := smith()
				tt.mutate(bad)
				records := testutil.Records(bad)
				if !partial {
					records = testutil.Records(doe(), bad, zhang())
				}
				err := s.Save(ctx, records, partial)
				require.ErrorIs(t, err, record.ErrMalformedEntry)
				assert.Contains(t, err.Error(), "Smith2020")
				assert.Equal(t, before, p.ReadFile(t, DefaultRecordsPath), "nothing written")

				got, err := s.Load(ctx, false)
				require.NoError(t, err)
				assert.Len(t, got, 3)
			})
		}
	}
}

func TestStore_SaveRejectsMiskeyedRecord(t *testing.T) {
	s, p := createTestStore(t)
	s.Notify(record.OpPrep)
	err := s.Save(context.Background(), map[string]*record.Record{"Other": smith()}, false)
	require.ErrorIs(t, err, record.ErrMalformedEntry)
	assert.Contains(t, err.Error(), "keyed as Other")
	assert.NoFileExists(t, p.Path(DefaultRecordsPath))
}

func TestStore_PartialSaveUnchangedLeavesFile(t *testing.T) {
	ctx := context.Background()
	s, p := createTestStore(t)
	seedRecords(t, p, doe(), smith())

	info, err := os.Stat(p.Path(DefaultRecordsPath))
	require.NoError(t, err)

	s.Notify(record.OpPrep)
	require.NoError(t, s.Save(ctx, testutil.Records(smith(), doe()), true))

	after, err := os.Stat(p.Path(DefaultRecordsPath))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
	assert.Equal(t, info.Size(), after.Size())
}

func TestStore_PartialSaveMissingRecord(t *testing.T) {
	ctx := context.Background()
	s, p := createTestStore(t)
	seedRecords(t, p, smith())
	before := p.ReadFile(t, DefaultRecordsPath)

	s.Notify(record.OpPrep)
	changed := smith()
	changed.Set("title", "Changed")
	err := s.Save(ctx, testutil.Records(changed, zhang()), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Zhang2021")
	assert.Equal(t, before, p.ReadFile(t, DefaultRecordsPath), "nothing written")
}

func TestStore_HasChangesNoCommits(t *testing.T) {
	s, _ := createTestStore(t)
	changed, err := s.HasChanges(context.Background(), backend.ScopeAll)
	require.NoError(t, err)
	assert.True(t, changed)
}
