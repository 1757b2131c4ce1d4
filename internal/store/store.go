package store

import (
	"database/sql"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultCacheSize is the number of nodes and adjacency lists kept in memory.
const DefaultCacheSize = 4096

// Store is the SQLite data access layer for the node catalog.
type Store struct {
	db *sql.DB

	// nil when caching is disabled.
	nodes    *lru.Cache[int64, *Node]
	children *lru.Cache[int64, []int64]
	parents  *lru.Cache[int64, []int64]
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	cacheSize int
}

// WithCacheSize sets the size of each read-through cache. Zero disables
// caching.
func WithCacheSize(n int) Option {
	return func(o *storeOptions) {
		o.cacheSize = n
	}
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	o := storeOptions{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if o.cacheSize > 0 {
		if s.nodes, err = lru.New[int64, *Node](o.cacheSize); err != nil {
			db.Close()
			return nil, fmt.Errorf("node cache: %w", err)
		}
		if s.children, err = lru.New[int64, []int64](o.cacheSize); err != nil {
			db.Close()
			return nil, fmt.Errorf("children cache: %w", err)
		}
		if s.parents, err = lru.New[int64, []int64](o.cacheSize); err != nil {
			db.Close()
			return nil, fmt.Errorf("parents cache: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the catalog tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// invalidate drops every cached entry. Called after writes.
func (s *Store) invalidate() {
	if s.nodes == nil {
		return
	}
	s.nodes.Purge()
	s.children.Purge()
	s.parents.Purge()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  id          INTEGER PRIMARY KEY,
  uuid        TEXT NOT NULL UNIQUE,
  name        TEXT NOT NULL,
  kind        TEXT NOT NULL,
  path        TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS node_tags (
  node_id     INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  tag         TEXT NOT NULL,
  PRIMARY KEY (node_id, tag)
);

CREATE TABLE IF NOT EXISTS edges (
  id          INTEGER PRIMARY KEY,
  from_id     INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  to_id       INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  kind        TEXT NOT NULL DEFAULT 'depends',
  UNIQUE (from_id, to_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE INDEX IF NOT EXISTS idx_node_tags_tag ON node_tags(tag);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
`
