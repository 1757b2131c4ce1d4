package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// nodeCols is the column list for node queries. Tags are folded into a JSON
// array so a node is one row.
const nodeCols = `n.id, n.uuid, n.name, n.kind, n.path, n.created_at,
	COALESCE((SELECT json_group_array(t.tag) FROM node_tags t WHERE t.node_id = n.id), '[]')`

func scanNode(scanner interface{ Scan(...any) error }) (*Node, error) {
	n := &Node{}
	var tags string
	if err := scanner.Scan(&n.ID, &n.UUID, &n.Name, &n.Kind, &n.Path, &n.CreatedAt, &tags); err != nil {
		return nil, err
	}
	n.Tags = unmarshalTags(tags)
	return n, nil
}

func (s *Store) queryNodes(query string, args ...any) ([]*Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// --- Writes ---

// InsertNode stores n and its tags. A UUID and creation time are assigned
// when missing. n.ID is set on success.
func (s *Store) InsertNode(n *Node) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("insert node: begin: %w", err)
	}
	defer tx.Rollback()

	id, err := insertNode(tx, n)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert node: commit: %w", err)
	}
	s.invalidate()
	return id, nil
}

func insertNode(ex execer, n *Node) (int64, error) {
	if n.UUID == "" {
		n.UUID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	n.Tags = normalizeTags(n.Tags)

	res, err := ex.Exec(
		"INSERT INTO nodes (uuid, name, kind, path, created_at) VALUES (?, ?, ?, ?, ?)",
		n.UUID, n.Name, n.Kind, n.Path, n.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert node %q: %w", n.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	for _, tag := range n.Tags {
		if _, err := ex.Exec("INSERT INTO node_tags (node_id, tag) VALUES (?, ?)", id, tag); err != nil {
			return 0, fmt.Errorf("insert tag %q for node %q: %w", tag, n.Name, err)
		}
	}
	n.ID = id
	return id, nil
}

// InsertEdge stores a dependency edge. Inserting an existing edge is a
// no-op that returns the existing id.
func (s *Store) InsertEdge(e *Edge) (int64, error) {
	id, err := insertEdge(s.db, e)
	if err != nil {
		return 0, err
	}
	s.invalidate()
	return id, nil
}

func insertEdge(ex execer, e *Edge) (int64, error) {
	if e.Kind == "" {
		e.Kind = EdgeDepends
	}
	if e.From == e.To {
		return 0, fmt.Errorf("insert edge: node %d cannot depend on itself", e.From)
	}
	res, err := ex.Exec(
		"INSERT OR IGNORE INTO edges (from_id, to_id, kind) VALUES (?, ?, ?)",
		e.From, e.To, e.Kind,
	)
	if err != nil {
		return 0, fmt.Errorf("insert edge %d->%d: %w", e.From, e.To, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ex.QueryRow(
			"SELECT id FROM edges WHERE from_id = ? AND to_id = ? AND kind = ?", e.From, e.To, e.Kind,
		).Scan(&e.ID)
		if err != nil {
			return 0, fmt.Errorf("existing edge %d->%d: %w", e.From, e.To, err)
		}
		return e.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

// --- Node lookups ---

// NodeByID returns the node with the given id, or nil if there is none.
func (s *Store) NodeByID(id int64) (*Node, error) {
	if s.nodes != nil {
		if n, ok := s.nodes.Get(id); ok {
			return n, nil
		}
	}
	n, err := scanNode(s.db.QueryRow("SELECT "+nodeCols+" FROM nodes n WHERE n.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("node by id: %w", err)
	}
	if s.nodes != nil {
		s.nodes.Add(id, n)
	}
	return n, nil
}

// NodeByUUID returns the node with the given UUID, or nil if there is none.
func (s *Store) NodeByUUID(u string) (*Node, error) {
	n, err := scanNode(s.db.QueryRow("SELECT "+nodeCols+" FROM nodes n WHERE n.uuid = ?", u))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("node by uuid: %w", err)
	}
	return n, nil
}

// NodesByIDs returns the nodes for ids in the order given. Unknown ids are
// skipped.
func (s *Store) NodesByIDs(ids []int64) ([]*Node, error) {
	found := make(map[int64]*Node, len(ids))
	var missing []int64
	for _, id := range ids {
		if s.nodes != nil {
			if n, ok := s.nodes.Get(id); ok {
				found[id] = n
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) > 0 {
		nodes, err := s.queryNodes(
			"SELECT "+nodeCols+" FROM nodes n WHERE n.id IN ("+placeholderList(len(missing))+")",
			int64sToArgs(missing)...,
		)
		if err != nil {
			return nil, fmt.Errorf("nodes by ids: %w", err)
		}
		for _, n := range nodes {
			found[n.ID] = n
			if s.nodes != nil {
				s.nodes.Add(n.ID, n)
			}
		}
	}

	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := found[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// NodesByName returns nodes with the exact name, ordered by id.
func (s *Store) NodesByName(name string) ([]*Node, error) {
	nodes, err := s.queryNodes("SELECT "+nodeCols+" FROM nodes n WHERE n.name = ? ORDER BY n.id", name)
	if err != nil {
		return nil, fmt.Errorf("nodes by name: %w", err)
	}
	return nodes, nil
}

// NodesByKind returns nodes of kind, ordered by id.
func (s *Store) NodesByKind(kind string) ([]*Node, error) {
	nodes, err := s.queryNodes("SELECT "+nodeCols+" FROM nodes n WHERE n.kind = ? ORDER BY n.id", kind)
	if err != nil {
		return nil, fmt.Errorf("nodes by kind: %w", err)
	}
	return nodes, nil
}

// NodesByTag returns nodes carrying tag, ordered by id.
func (s *Store) NodesByTag(tag string) ([]*Node, error) {
	nodes, err := s.queryNodes(
		"SELECT "+nodeCols+" FROM nodes n JOIN node_tags nt ON nt.node_id = n.id WHERE nt.tag = ? ORDER BY n.id", tag,
	)
	if err != nil {
		return nil, fmt.Errorf("nodes by tag: %w", err)
	}
	return nodes, nil
}

// AllNodes streams every node ordered by id. Rows are read lazily; stopping
// the iteration early closes the cursor.
func (s *Store) AllNodes(ctx context.Context) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		rows, err := s.db.QueryContext(ctx, "SELECT "+nodeCols+" FROM nodes n ORDER BY n.id")
		if err != nil {
			yield(nil, fmt.Errorf("all nodes: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			n, err := scanNode(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan node: %w", err))
				return
			}
			if !yield(n, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("all nodes: %w", err))
		}
	}
}

// --- Adjacency ---

// ChildIDs returns the ids of the nodes id depends on, in edge insertion
// order.
func (s *Store) ChildIDs(id int64) ([]int64, error) {
	return s.adjacent(s.children, id,
		"SELECT to_id FROM edges WHERE from_id = ? GROUP BY to_id ORDER BY MIN(id)")
}

// ParentIDs returns the ids of the nodes depending on id, in edge insertion
// order.
func (s *Store) ParentIDs(id int64) ([]int64, error) {
	return s.adjacent(s.parents, id,
		"SELECT from_id FROM edges WHERE to_id = ? GROUP BY from_id ORDER BY MIN(id)")
}

func (s *Store) adjacent(cache *lru.Cache[int64, []int64], id int64, query string) ([]int64, error) {
	if cache != nil {
		if ids, ok := cache.Get(id); ok {
			return ids, nil
		}
	}
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("adjacent nodes of %d: %w", id, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var other int64
		if err := rows.Scan(&other); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		ids = append(ids, other)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Add(id, ids)
	}
	return ids, nil
}

// Children returns the nodes id depends on.
func (s *Store) Children(id int64) ([]*Node, error) {
	ids, err := s.ChildIDs(id)
	if err != nil {
		return nil, err
	}
	return s.NodesByIDs(ids)
}

// Parents returns the nodes depending on id.
func (s *Store) Parents(id int64) ([]*Node, error) {
	ids, err := s.ParentIDs(id)
	if err != nil {
		return nil, err
	}
	return s.NodesByIDs(ids)
}

// Edges returns every edge ordered by id.
func (s *Store) Edges() ([]*Edge, error) {
	rows, err := s.db.Query("SELECT id, from_id, to_id, kind FROM edges ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("edges: %w", err)
	}
	defer rows.Close()
	var edges []*Edge
	for rows.Next() {
		e := &Edge{}
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Kind); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Stats counts nodes, edges and distinct tags.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM nodes),
		(SELECT COUNT(*) FROM edges),
		(SELECT COUNT(DISTINCT tag) FROM node_tags)`).Scan(&st.Nodes, &st.Edges, &st.Tags)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
