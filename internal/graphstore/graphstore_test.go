package graphstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soda-gql/sodabuild/internal/canonical"
	"github.com/soda-gql/sodabuild/internal/depgraph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), DBFileName))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func node(file, astPath string, deps ...canonical.ID) *depgraph.Node {
	return &depgraph.Node{
		ID:           canonical.Encode(file, astPath),
		FilePath:     file,
		Dependencies: deps,
		Summary: depgraph.Summary{
			Kind:       "fragment",
			Expression: "gql.default((q) => q.f())",
			IsTopLevel: true,
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	base := node("/src/a.ts", "base")
	combined := node("/src/c.ts", "combined", base.ID)
	combined.Summary.IsExported = true
	combined.Summary.ExportBinding = "combined"

	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		UpsertNodes: []*depgraph.Node{base, combined},
	}))

	graph, err := s.LoadGraph()
	require.NoError(t, err)
	require.Len(t, graph, 2)

	got := graph[combined.ID]
	require.NotNil(t, got)
	assert.Equal(t, "/src/c.ts", got.FilePath)
	assert.Equal(t, combined.Summary, got.Summary)
	assert.Equal(t, []canonical.ID{base.ID}, got.Dependencies)
	assert.Nil(t, graph[base.ID].Dependencies)
}

func TestStore_UpsertReplacesDeps(t *testing.T) {
	s := newTestStore(t)

	a := node("/src/a.ts", "a")
	b := node("/src/a.ts", "b")
	c := node("/src/c.ts", "c", a.ID, b.ID)
	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		UpsertNodes: []*depgraph.Node{a, b, c},
	}))

	// Re-upsert with a shorter dependency list; stale rows must not
	// survive.
	c2 := node("/src/c.ts", "c", b.ID)
	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		UpsertNodes: []*depgraph.Node{c2},
	}))

	graph, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, []canonical.ID{b.ID}, graph[c.ID].Dependencies)
}

func TestStore_PatchOrdering(t *testing.T) {
	s := newTestStore(t)

	a := node("/src/a.ts", "a")
	sibling := node("/src/a.ts", "sibling")
	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		UpsertNodes: []*depgraph.Node{a, sibling},
	}))

	// Remove the whole module and re-insert one of its nodes in the
	// same patch: the upsert wins, the sibling stays gone.
	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		RemovedModules: []string{"/src/a.ts"},
		UpsertNodes:    []*depgraph.Node{node("/src/a.ts", "a")},
	}))

	graph, err := s.LoadGraph()
	require.NoError(t, err)
	require.Len(t, graph, 1)
	assert.Contains(t, graph, a.ID)
}

func TestStore_RemovedNodes(t *testing.T) {
	s := newTestStore(t)

	a := node("/src/a.ts", "a")
	b := node("/src/a.ts", "b")
	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		UpsertNodes: []*depgraph.Node{a, b},
	}))
	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		RemovedNodes: []canonical.ID{b.ID},
	}))

	graph, err := s.LoadGraph()
	require.NoError(t, err)
	require.Len(t, graph, 1)
	assert.Contains(t, graph, a.ID)
}

func TestStore_Metadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("config_hash")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("config_hash", "abc"))
	require.NoError(t, s.SetMetadata("config_hash", "def"))

	v, err = s.GetMetadata("config_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestStore_ResetKeepsMetadata(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.ApplyPatch(&depgraph.Patch{
		UpsertNodes: []*depgraph.Node{node("/src/a.ts", "a")},
	}))
	require.NoError(t, s.SetMetadata("config_hash", "abc"))

	require.NoError(t, s.Reset())

	graph, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Empty(t, graph)

	v, err := s.GetMetadata("config_hash")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}
