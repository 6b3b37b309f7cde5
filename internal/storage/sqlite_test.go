package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influencemap/internal/graph"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plato := graph.NewNode("Plato", "Plato was an ancient Greek philosopher.")
	logic := graph.NewNode("Logic", "Logic is the study of correct reasoning.")
	kant := graph.NewNode("Kant", "")
	run := &Run{
		Seeds:       []string{"Plato", "Kant"},
		Missing:     []string{"Nowhere"},
		Interrupted: true,
		Duration:    1500 * time.Millisecond,
		Edges: []graph.Edge{
			graph.NewEdge(plato, logic),
			{Src: logic, Dest: kant, Weight: 3},
		},
	}

	id, err := store.SaveRun(ctx, run)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, run.ID)

	loaded, err := store.LoadRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, loaded.ID)
	assert.Equal(t, []string{"Plato", "Kant"}, loaded.Seeds)
	assert.Equal(t, []string{"Nowhere"}, loaded.Missing)
	assert.True(t, loaded.Interrupted)
	assert.Equal(t, 1500*time.Millisecond, loaded.Duration)
	assert.WithinDuration(t, run.CreatedAt, loaded.CreatedAt, time.Microsecond)

	require.Len(t, loaded.Edges, 2)
	assert.Equal(t, "Plato", loaded.Edges[0].Src.Title)
	assert.Equal(t, "Logic", loaded.Edges[0].Dest.Title)
	assert.Equal(t, graph.DefaultWeight, loaded.Edges[0].Weight)
	assert.Equal(t, 3, loaded.Edges[1].Weight)
	assert.Same(t, loaded.Edges[0].Dest, loaded.Edges[1].Src, "endpoints share nodes")
	assert.Equal(t, "Plato was an ancient Greek philosopher.", loaded.Edges[0].Src.CachedSummary())
}

func TestSQLiteStore_SaveRunReplacesSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, b, c := graph.NewNode("A", ""), graph.NewNode("B", ""), graph.NewNode("C", "")
	run := &Run{Seeds: []string{"A"}, Edges: []graph.Edge{graph.NewEdge(a, b), graph.NewEdge(b, c)}}
	id, err := store.SaveRun(ctx, run)
	require.NoError(t, err)

	run.Edges = []graph.Edge{graph.NewEdge(c, a)}
	_, err = store.SaveRun(ctx, run)
	require.NoError(t, err)

	loaded, err := store.LoadRun(ctx, id)
	require.NoError(t, err)
	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, graph.EdgeKey{A: "A", B: "C"}, loaded.Edges[0].Key())

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Nodes)
	assert.Equal(t, 1, runs[0].Edges)
}

func TestSQLiteStore_EmptyRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SaveRun(ctx, &Run{})
	require.NoError(t, err)

	loaded, err := store.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, loaded.Seeds)
	assert.Empty(t, loaded.Edges)
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, seed := range []string{"Old", "Newest", "Middle"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		_, err := store.SaveRun(ctx, &Run{Seeds: []string{seed}, CreatedAt: base.Add(offset)})
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"Newest"}, runs[0].Seeds)
	assert.Equal(t, []string{"Middle"}, runs[1].Seeds)
	assert.Equal(t, []string{"Old"}, runs[2].Seeds)
}

func TestSQLiteStore_LoadUnknownRun(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
