package store

import "time"

// Node kinds written by the indexer and accepted by the catalog loader.
const (
	KindPackage = "package"
	KindModule  = "module"
	KindService = "service"
	KindLibrary = "library"
	KindFile    = "file"
)

// NodeKinds lists every accepted node kind.
var NodeKinds = []string{KindPackage, KindModule, KindService, KindLibrary, KindFile}

// Edge kinds. EdgeDepends is the default: From depends on To.
const (
	EdgeDepends = "depends"
	EdgeImports = "imports"
)

// TagExternal marks module nodes that live outside the indexed module;
// TagTest marks packages made only of test files.
const (
	TagExternal = "external"
	TagTest     = "test"
)

// Node is one entity in the dependency catalog. Nodes returned by the
// store may be shared through the cache and must not be modified.
type Node struct {
	ID        int64
	UUID      string
	Name      string
	Kind      string
	Path      string
	Tags      []string
	CreatedAt time.Time
}

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Edge is a directed dependency from From to To.
type Edge struct {
	ID   int64
	From int64
	To   int64
	Kind string
}

// Stats summarizes the catalog contents.
type Stats struct {
	Nodes int
	Edges int
	Tags  int
}
