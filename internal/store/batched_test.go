package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_BuffersWithFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore(s)

	id1, err := batch.InsertNode(&Node{Name: "api", Kind: KindService})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.InsertNode(&Node{Name: "db", Kind: KindLibrary})
	require.NoError(t, err)
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Nodes, "nothing is written before commit")
}

func TestBatchedStore_NodesByName_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestNode(t, s, "api", KindService)

	batch := NewBatchedStore(s)
	_, err := batch.InsertNode(&Node{Name: "api", Kind: KindPackage})
	require.NoError(t, err)

	nodes, err := batch.NodesByName("api")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Negative(t, nodes[0].ID, "buffered nodes come first")
	assert.Positive(t, nodes[1].ID)

	batch.ReplaceExisting()
	nodes, err = batch.NodesByName("api")
	require.NoError(t, err)
	assert.Len(t, nodes, 1, "stored nodes are ignored when replacing")
}

func TestCommitBatch_RemapsEdgeEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	existing := insertTestNode(t, s, "log", KindLibrary)

	batch := NewBatchedStore(s)
	api, _ := batch.InsertNode(&Node{Name: "api", Kind: KindService, Tags: []string{"prod"}})
	db, _ := batch.InsertNode(&Node{Name: "db", Kind: KindLibrary})
	_, _ = batch.InsertEdge(&Edge{From: api, To: db})
	_, _ = batch.InsertEdge(&Edge{From: api, To: existing.ID})
	_, _ = batch.InsertEdge(&Edge{From: api, To: db})

	require.NoError(t, s.CommitBatch(batch))

	apis, err := s.NodesByName("api")
	require.NoError(t, err)
	require.Len(t, apis, 1)
	assert.Equal(t, []string{"prod"}, apis[0].Tags)

	children, err := s.Children(apis[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "log"}, nodeNames(children))

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Nodes: 3, Edges: 2, Tags: 1}, st)
}

func TestCommitBatch_Replace(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	old := insertTestNode(t, s, "old", KindPackage)
	other := insertTestNode(t, s, "other", KindPackage)
	insertTestEdge(t, s, old, other)

	batch := NewBatchedStore(s)
	batch.ReplaceExisting()
	_, _ = batch.InsertNode(&Node{Name: "new", Kind: KindPackage})
	require.NoError(t, s.CommitBatch(batch))

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Nodes: 1}, st)

	gone, err := s.NodeByID(old.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCommitBatch_UnknownFakeEndpointRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	batch := NewBatchedStore(s)
	a, _ := batch.InsertNode(&Node{Name: "a", Kind: KindPackage})
	_, _ = batch.InsertEdge(&Edge{From: a, To: -99})

	require.Error(t, s.CommitBatch(batch))
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Nodes, "the transaction is rolled back")
}
