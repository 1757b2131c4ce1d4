package store

// NodeWriter is the write side used by the catalog loader and the indexer.
// Both Store (direct SQLite) and BatchedStore (in-memory buffering committed
// in one transaction) implement it.
type NodeWriter interface {
	// Inserts return the assigned ID.
	InsertNode(n *Node) (int64, error)
	InsertEdge(e *Edge) (int64, error)

	// Lookup used to resolve edge endpoints by name.
	NodesByName(name string) ([]*Node, error)
}

// Compile-time check: *Store satisfies NodeWriter.
var _ NodeWriter = (*Store)(nil)
