package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	finder "github.com/jward/finder"
	"github.com/jward/finder/internal/catalog"
	"github.com/jward/finder/internal/index"
	"github.com/jward/finder/internal/store"
)

// nodeFinder is satisfied by both the node finder and the graph finder.
type nodeFinder interface {
	Items(text string) (*finder.PagedResult[*store.Node], error)
	Item(text string) (*store.Node, error)
	Definition() *finder.Definition[*store.Node]
}

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [path]",
		Short: "Index the Go packages under a directory",
		Long: "Parses every .go file with tree-sitter and replaces the catalog with one node per package, " +
			"one node per third-party module and an edge per import.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveTargetDir(args)
			if err != nil {
				return a.outputError("index", "", err)
			}
			s, err := a.openStore(true)
			if err != nil {
				return a.outputError("index", "", err)
			}
			defer s.Close()

			ix := index.New(s, a.cfg.DB, index.WithLogger(a.logger))
			res, err := ix.IndexDirectory(cmd.Context(), dir)
			if err != nil {
				return a.outputError("index", "", fmt.Errorf("indexing: %w", err))
			}
			return a.outputResult(CLIResult{
				Command: "index",
				Results: CLIIndexResult{
					Root:     dir,
					Files:    res.Files,
					Packages: res.Packages,
					Modules:  res.Modules,
					Edges:    res.Edges,
				},
				Count: res.Packages + res.Modules,
			})
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "load <catalog.yaml>",
		Short: "Load nodes and edges from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return a.outputError("load", "", err)
			}
			s, err := a.openStore(true)
			if err != nil {
				return a.outputError("load", "", err)
			}
			defer s.Close()

			res, err := catalog.LoadFile(s, path, replace)
			if err != nil {
				return a.outputError("load", "", err)
			}
			a.logger.Info("catalog loaded",
				zap.String("file", path),
				zap.Int("nodes", res.Nodes),
				zap.Int("edges", res.Edges),
				zap.Bool("replace", replace))
			return a.outputResult(CLIResult{
				Command: "load",
				Results: CLILoadResult{File: path, Nodes: res.Nodes, Edges: res.Edges, Replace: replace},
				Count:   res.Nodes,
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "delete the existing catalog before loading")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var single bool
	cmd := &cobra.Command{
		Use:   "query <locator>",
		Short: "Find nodes matching a locator",
		Long: "Resolves a locator such as kind:service,tag:prod against the catalog. " +
			"Use the locator $help to list the supported dimensions.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFinder("query", args[0], single, func(c *catalog.Catalog) nodeFinder { return c.Nodes() })
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "require exactly one matching node")
	return cmd
}

func (a *app) graphCmd() *cobra.Command {
	var single bool
	cmd := &cobra.Command{
		Use:   "graph <locator>",
		Short: "Walk the dependency graph",
		Long: "Resolves a graph locator such as from:(name:api),recursive:false. " +
			"from follows dependencies, to follows dependents.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFinder("graph", args[0], single, func(c *catalog.Catalog) nodeFinder { return c.Graph() })
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "require exactly one matching node")
	return cmd
}

func (a *app) runFinder(command, locator string, single bool, pick func(*catalog.Catalog) nodeFinder) error {
	s, err := a.openStore(false)
	if err != nil {
		return a.outputError(command, locator, err)
	}
	defer s.Close()
	c, err := a.newCatalog(s)
	if err != nil {
		return a.outputError(command, locator, err)
	}
	f := pick(c)

	if single {
		n, err := f.Item(locator)
		if err != nil {
			return a.finderError(command, locator, f, err)
		}
		return a.outputResult(CLIResult{
			Command: command,
			Locator: locator,
			Results: []CLINode{nodeToCLI(n)},
			Count:   1,
		})
	}

	res, err := f.Items(locator)
	if err != nil {
		return a.finderError(command, locator, f, err)
	}
	scanned := res.Scanned
	return a.outputResult(CLIResult{
		Command:            command,
		Locator:            locator,
		Results:            nodesToCLI(res.Items),
		Count:              len(res.Items),
		Scanned:            &scanned,
		LookupLimitReached: res.LookupLimitReached,
	})
}

// finderError prints $help output as a result and reports everything else.
func (a *app) finderError(command, locator string, f nodeFinder, err error) error {
	if finder.KindOf(err) == finder.KindHelpRequested {
		return a.outputResult(CLIResult{
			Command: command,
			Locator: locator,
			Results: CLIHelp{Entity: f.Definition().Entity(), Text: err.Error()},
		})
	}
	return a.outputError(command, locator, err)
}

func (a *app) helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "help [graph]",
		Short:     "Describe the dimensions accepted by query or graph",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"graph"},
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := ""
			if len(args) > 0 {
				topic = args[0]
			}
			if topic != "" && topic != "graph" {
				return a.outputError("help", "", fmt.Errorf("unknown help topic %q: use 'graph' or nothing", topic))
			}

			// Help only needs the definitions, not the catalog contents.
			s, err := store.NewStore(":memory:", store.WithCacheSize(0))
			if err != nil {
				return a.outputError("help", "", err)
			}
			defer s.Close()
			c, err := a.newCatalog(s)
			if err != nil {
				return a.outputError("help", "", err)
			}

			var f nodeFinder = c.Nodes()
			if topic == "graph" {
				f = c.Graph()
			}
			return a.outputResult(CLIResult{
				Command: "help",
				Results: CLIHelp{Entity: f.Definition().Entity(), Text: f.Definition().Help()},
			})
		},
	}
}
