package store

import "sync"

// BatchedStore buffers node and edge inserts in memory using fake (negative)
// IDs so a whole catalog or index run can be written in one transaction by
// CommitBatch. It implements NodeWriter, so loaders can write to it without
// knowing whether they're hitting SQLite or the buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// NodesByName reads are passed through to the underlying Store.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Nodes []Node
	Edges []Edge

	// replace makes CommitBatch delete the existing catalog first.
	replace bool

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies NodeWriter.
var _ NodeWriter = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

// ReplaceExisting makes the commit replace the stored catalog instead of
// adding to it.
func (b *BatchedStore) ReplaceExisting() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replace = true
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertNode(n *Node) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	n.ID = fakeID
	n.Tags = normalizeTags(n.Tags)
	b.Nodes = append(b.Nodes, *n)
	return fakeID, nil
}

// InsertEdge buffers e. From and To may be fake or real ids. Duplicate
// edges are collapsed at commit time.
func (b *BatchedStore) InsertEdge(e *Edge) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.Kind == "" {
		e.Kind = EdgeDepends
	}
	fakeID := b.allocFakeID()
	e.ID = fakeID
	b.Edges = append(b.Edges, *e)
	return fakeID, nil
}

// NodesByName returns buffered nodes with the name followed by stored ones.
// Stored nodes are skipped when the batch replaces the catalog.
func (b *BatchedStore) NodesByName(name string) ([]*Node, error) {
	b.mu.Lock()
	var out []*Node
	for i := range b.Nodes {
		if b.Nodes[i].Name == name {
			n := b.Nodes[i]
			out = append(out, &n)
		}
	}
	replace := b.replace
	b.mu.Unlock()

	if replace || b.store == nil {
		return out, nil
	}
	stored, err := b.store.NodesByName(name)
	if err != nil {
		return nil, err
	}
	return append(out, stored...), nil
}
