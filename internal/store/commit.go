package store

import (
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) node IDs are remapped to real
// IDs and edge endpoints are rewritten using the fakeToReal mapping.
//
// When the batch replaces the catalog, existing edges, tags and nodes are
// deleted first in the same transaction.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	if batch.replace {
		for _, table := range []string{"edges", "node_tags", "nodes"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("commit batch: clear %s: %w", table, err)
			}
		}
	}

	fakeToReal := make(map[int64]int64, len(batch.Nodes))

	// 1. Nodes
	for i := range batch.Nodes {
		n := batch.Nodes[i]
		fakeID := n.ID
		realID, err := insertNode(tx, &n)
		if err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		fakeToReal[fakeID] = realID
	}

	// 2. Edges (depend on node ids, fake or real)
	for _, e := range batch.Edges {
		for _, end := range []*int64{&e.From, &e.To} {
			if *end >= 0 {
				continue
			}
			realID, ok := fakeToReal[*end]
			if !ok {
				return fmt.Errorf("commit batch: edge endpoint %d not in batch (have %d nodes)", *end, len(batch.Nodes))
			}
			*end = realID
		}
		if _, err := insertEdge(tx, &e); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	s.invalidate()
	return nil
}
