package storage

import (
	"context"
	"path/filepath"
	"testing"

	"archmap/internal/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res := &analysis.Result{
		JobID:       "j1",
		GitRef:      "main",
		FileCount:   2,
		SymbolCount: 1,
		Graph: &analysis.DependencyGraph{
			Nodes: []analysis.GraphNode{{ID: "a/x.ts"}, {ID: "b/z.ts"}},
			Edges: []analysis.GraphEdge{{Source: "a/x.ts", Target: "b/z.ts", Relationship: "imports"}},
		},
		Facts: analysis.CodeFacts{
			Symbols:       []analysis.Symbol{{Name: "foo", File: "a/x.ts"}},
			FunctionCalls: []analysis.FunctionCall{{FromFunction: "foo", ToFunction: "bar"}},
		},
	}
	require.NoError(t, s.Save(ctx, "repo1", res))

	loaded, err := s.Load(ctx, "repo1", "main")
	require.NoError(t, err)
	assert.Equal(t, res, loaded)
}

func TestStore_LoadMiss(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "repo1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "repo1", &analysis.Result{GitRef: "main", FileCount: 1}))
	require.NoError(t, s.Save(ctx, "repo1", &analysis.Result{GitRef: "main", FileCount: 9}))

	loaded, err := s.Load(ctx, "repo1", "main")
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.FileCount)
}

func TestStore_VersionsAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "repo1", &analysis.Result{GitRef: "main"}))
	require.NoError(t, s.Save(ctx, "repo1", &analysis.Result{GitRef: "v1.0.0"}))
	require.NoError(t, s.Save(ctx, "repo2", &analysis.Result{GitRef: "main"}))

	refs, err := s.Versions(ctx, "repo1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "v1.0.0"}, refs)

	require.NoError(t, s.Delete(ctx, "repo1", "main"))
	refs, err = s.Versions(ctx, "repo1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.0.0"}, refs)
}

func TestStore_RejectsUnresolvedRef(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Save(context.Background(), "repo1", &analysis.Result{}))
}
