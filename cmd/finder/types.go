package main

import (
	"time"

	"github.com/jward/finder/internal/store"
)

// CLIResult is the JSON envelope for every command.
type CLIResult struct {
	Command            string `json:"command"`
	Locator            string `json:"locator,omitempty"`
	Results            any    `json:"results"`
	Count              int    `json:"count"`
	Scanned            *int   `json:"scanned,omitempty"`
	LookupLimitReached bool   `json:"lookup_limit_reached,omitempty"`
	Error              string `json:"error,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// CLINode is a JSON-friendly node.
type CLINode struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CLIIndexResult summarizes an index run.
type CLIIndexResult struct {
	Root     string `json:"root"`
	Files    int    `json:"files"`
	Packages int    `json:"packages"`
	Modules  int    `json:"modules"`
	Edges    int    `json:"edges"`
}

// CLILoadResult summarizes a catalog load.
type CLILoadResult struct {
	File    string `json:"file"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
	Replace bool   `json:"replace"`
}

// CLIHelp carries generated finder documentation.
type CLIHelp struct {
	Entity string `json:"entity"`
	Text   string `json:"text"`
}

func nodeToCLI(n *store.Node) CLINode {
	return CLINode{
		ID:        n.ID,
		UUID:      n.UUID,
		Name:      n.Name,
		Kind:      n.Kind,
		Path:      n.Path,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt,
	}
}

func nodesToCLI(nodes []*store.Node) []CLINode {
	out := make([]CLINode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeToCLI(n))
	}
	return out
}
