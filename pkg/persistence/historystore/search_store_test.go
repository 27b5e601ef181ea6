package historystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteSearchStore {
	t.Helper()
	dsn, err := SQLiteSearchDSNForFile(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	s, err := NewSQLiteSearchStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecords() []Record {
	score := 0.7
	return []Record{
		{
			SessionID:   "s-1",
			Query:       "best hiking trails",
			Provider:    "openrouter",
			Report:      &searchapi.Report{Title: "Trails", Answer: "# Alps\nGo."},
			Images:      []string{"https://img.example/1.png"},
			Resources:   []searchapi.Resource{{Title: "Alps", URL: "https://alps.example", Score: &score}},
			UserDetails: "likes mountains",
			CreatedAtMs: 100,
		},
		{SessionID: "s-2", Query: "vegan ramen", Provider: "ollama", CreatedAtMs: 200},
		{SessionID: "s-3", Query: "Hiking boots", Provider: "openrouter", CreatedAtMs: 300},
	}
}

func exerciseSearchStore(t *testing.T, s SearchStore) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sampleRecords() {
		require.NoError(t, s.Save(ctx, r))
	}

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "s-3", all[0].SessionID)
	require.Equal(t, "s-1", all[2].SessionID)

	hiking, err := s.List(ctx, Query{Contains: "HIKING"})
	require.NoError(t, err)
	require.Len(t, hiking, 2)

	ollama, err := s.List(ctx, Query{Provider: "ollama"})
	require.NoError(t, err)
	require.Len(t, ollama, 1)

	recent, err := s.List(ctx, Query{SinceMs: 150, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "s-3", recent[0].SessionID)

	r, ok, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Trails", r.Title())
	require.Equal(t, "likes mountains", r.UserDetails)
	require.Len(t, r.Resources, 1)
	require.InDelta(t, 0.7, *r.Resources[0].Score, 0.0001)
	require.Equal(t, []string{"https://img.example/1.png"}, r.Images)

	r.Query = "best hiking trails 2"
	require.NoError(t, s.Save(ctx, r))
	r, _, err = s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, "best hiking trails 2", r.Query)

	deleted, err := s.Delete(ctx, "s-2")
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = s.Delete(ctx, "s-2")
	require.NoError(t, err)
	require.False(t, deleted)

	_, ok, err = s.Get(ctx, "s-2")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, s.Save(ctx, Record{Query: "no session"}))
}

func TestInMemorySearchStore_Behavior(t *testing.T) {
	exerciseSearchStore(t, NewInMemorySearchStore(10))
}

func TestSQLiteSearchStore_Behavior(t *testing.T) {
	exerciseSearchStore(t, newSQLiteStore(t))
}

func TestInMemorySearchStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySearchStore(2)
	for _, r := range sampleRecords() {
		require.NoError(t, s.Save(ctx, r))
	}
	_, ok, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecord_TitleFallsBackToQuery(t *testing.T) {
	require.Equal(t, "vegan ramen", Record{Query: "vegan ramen"}.Title())
	require.Equal(t, "vegan ramen", Record{Query: "vegan ramen", Report: &searchapi.Report{Title: "  "}}.Title())
}

func TestOpen_CreatesMissingParentDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fresh-home", ".clarinet", "history.db")

	s, err := Open(Settings{Enabled: true, Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleRecords()[0]))
	require.NoError(t, s.Close())

	s, err = Open(Settings{Enabled: true, Path: path})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	_, ok, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpen_DisabledUsesMemory(t *testing.T) {
	s, err := Open(Settings{Enabled: false, Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	_, ok := s.(*InMemorySearchStore)
	require.True(t, ok)
}
