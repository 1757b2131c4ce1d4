package catalog

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jward/finder/internal/store"
)

// File is the YAML catalog format. Edge endpoints are node names.
type File struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Edges []EdgeSpec `yaml:"edges"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	Name string   `yaml:"name"`
	Kind string   `yaml:"kind"`
	Path string   `yaml:"path,omitempty"`
	Tags []string `yaml:"tags,omitempty"`
}

// EdgeSpec declares that From depends on To.
type EdgeSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Kind string `yaml:"kind,omitempty"`
}

// LoadResult counts what a load wrote.
type LoadResult struct {
	Nodes int
	Edges int
}

// ParseFile reads and validates a YAML catalog.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields, kinds and duplicate names.
func (f *File) Validate() error {
	names := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.Name == "" {
			return fmt.Errorf("catalog: node %d: name is required", i)
		}
		if !slices.Contains(store.NodeKinds, n.Kind) {
			return fmt.Errorf("catalog: node %q: unknown kind %q (want one of %v)", n.Name, n.Kind, store.NodeKinds)
		}
		if names[n.Name] {
			return fmt.Errorf("catalog: node %q declared twice", n.Name)
		}
		names[n.Name] = true
	}
	for i, e := range f.Edges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("catalog: edge %d: from and to are required", i)
		}
		if e.From == e.To {
			return fmt.Errorf("catalog: edge %d: %q cannot depend on itself", i, e.From)
		}
	}
	return nil
}

// Load writes f through w. Edge endpoints are resolved by name; nodes
// declared in f take precedence over stored nodes with the same name.
func Load(w store.NodeWriter, f *File) (*LoadResult, error) {
	res := &LoadResult{}
	for _, spec := range f.Nodes {
		n := &store.Node{Name: spec.Name, Kind: spec.Kind, Path: spec.Path, Tags: spec.Tags}
		if _, err := w.InsertNode(n); err != nil {
			return nil, fmt.Errorf("catalog: insert node %q: %w", spec.Name, err)
		}
		res.Nodes++
	}
	for _, spec := range f.Edges {
		from, err := resolveName(w, spec.From)
		if err != nil {
			return nil, err
		}
		to, err := resolveName(w, spec.To)
		if err != nil {
			return nil, err
		}
		if _, err := w.InsertEdge(&store.Edge{From: from, To: to, Kind: spec.Kind}); err != nil {
			return nil, fmt.Errorf("catalog: insert edge %s -> %s: %w", spec.From, spec.To, err)
		}
		res.Edges++
	}
	return res, nil
}

func resolveName(w store.NodeWriter, name string) (int64, error) {
	nodes, err := w.NodesByName(name)
	if err != nil {
		return 0, fmt.Errorf("catalog: resolve %q: %w", name, err)
	}
	if len(nodes) == 0 {
		return 0, fmt.Errorf("catalog: edge references unknown node %q", name)
	}
	return nodes[0].ID, nil
}

// LoadFile parses path and writes it to s in a single transaction. With
// replace the stored catalog is discarded first.
func LoadFile(s *store.Store, path string, replace bool) (*LoadResult, error) {
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	batch := store.NewBatchedStore(s)
	if replace {
		batch.ReplaceExisting()
	}
	res, err := Load(batch, f)
	if err != nil {
		return nil, err
	}
	if err := s.CommitBatch(batch); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return res, nil
}
