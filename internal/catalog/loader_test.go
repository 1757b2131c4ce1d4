package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/finder/internal/store"
)

func TestParse_Valid(t *testing.T) {
	t.Parallel()
	f, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, f.Nodes, 5)
	assert.Equal(t, NodeSpec{Name: "api", Kind: store.KindService, Path: "cmd/api", Tags: []string{"prod", "edge"}}, f.Nodes[0])
	require.Len(t, f.Edges, 5)
	assert.Equal(t, EdgeSpec{From: "store", To: "sqlite"}, f.Edges[3])
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"syntax":         "nodes: [",
		"missing name":   "nodes: [{kind: service}]",
		"unknown kind":   "nodes: [{name: a, kind: planet}]",
		"duplicate name": "nodes: [{name: a, kind: service}, {name: a, kind: library}]",
		"edge endpoints": "edges: [{from: a}]",
		"self edge":      "edges: [{from: a, to: a}]",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	res, err := LoadFile(s, writeCatalogFile(t, sampleCatalog), false)
	require.NoError(t, err)
	assert.Equal(t, &LoadResult{Nodes: 5, Edges: 5}, res)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Nodes: 5, Edges: 5, Tags: 4}, st)

	api, err := s.NodesByName("api")
	require.NoError(t, err)
	require.Len(t, api, 1)
	assert.Equal(t, []string{"edge", "prod"}, api[0].Tags)
	edges, err := s.Edges()
	require.NoError(t, err)
	assert.Equal(t, store.EdgeDepends, edges[0].Kind)
}

func TestLoadFile_AppendsAndResolvesStoredNodes(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := LoadFile(s, writeCatalogFile(t, sampleCatalog), false)
	require.NoError(t, err)

	extra := `
nodes:
  - {name: cron, kind: service}
edges:
  - {from: cron, to: store, kind: calls}
`
	res, err := LoadFile(s, writeCatalogFile(t, extra), false)
	require.NoError(t, err)
	assert.Equal(t, &LoadResult{Nodes: 1, Edges: 1}, res)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 6, st.Nodes)
	assert.Equal(t, 6, st.Edges)
}

func TestLoadFile_Replace(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := LoadFile(s, writeCatalogFile(t, sampleCatalog), false)
	require.NoError(t, err)

	_, err = LoadFile(s, writeCatalogFile(t, "nodes: [{name: solo, kind: file}]"), true)
	require.NoError(t, err)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Nodes: 1}, st)
}

func TestLoadFile_UnknownEndpointWritesNothing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := LoadFile(s, writeCatalogFile(t, "nodes: [{name: a, kind: service}]\nedges: [{from: a, to: ghost}]"), false)
	require.ErrorContains(t, err, "ghost")

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Nodes)
}

func TestLoadFile_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(newTestStore(t), filepath.Join(t.TempDir(), "none.yaml"), false)
	assert.Error(t, err)
}
