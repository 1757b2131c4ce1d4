package catalog

import (
	"fmt"

	"go.uber.org/zap"

	finder "github.com/jward/finder"
	"github.com/jward/finder/internal/runtime"
	"github.com/jward/finder/internal/store"
)

// Catalog bundles the finders over one store.
type Catalog struct {
	store *store.Store
	nodes *finder.Finder[*store.Node]
	graph *finder.GraphFinder[*store.Node]
}

type options struct {
	logger           *zap.Logger
	observer         finder.Observer
	runtime          *runtime.Runtime
	lookupLimit      int
	graphLookupLimit int
}

// Option configures a Catalog.
type Option func(*options)

// WithLogger sets the logger shared by both finders.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver receives query stats from both finders.
func WithObserver(obs finder.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithRuntime sets the runtime that compiles expr values. By default a
// runtime with graph access to the store is created.
func WithRuntime(rt *runtime.Runtime) Option {
	return func(o *options) {
		o.runtime = rt
	}
}

// WithLookupLimit sets the node finder's default lookup limit.
func WithLookupLimit(n int) Option {
	return func(o *options) {
		o.lookupLimit = n
	}
}

// WithGraphLookupLimit sets the graph finder's default lookup limit.
func WithGraphLookupLimit(n int) Option {
	return func(o *options) {
		o.graphLookupLimit = n
	}
}

// New builds the node and dependency graph finders over s.
func New(s *store.Store, opts ...Option) (*Catalog, error) {
	o := options{
		logger:           zap.NewNop(),
		lookupLimit:      DefaultLookupLimit,
		graphLookupLimit: DefaultGraphLookupLimit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runtime == nil {
		o.runtime = runtime.NewRuntime(runtime.WithGraph(s), runtime.WithLogger(o.logger))
	}

	finderOpts := []finder.Option{finder.WithLogger(o.logger)}
	if o.observer != nil {
		finderOpts = append(finderOpts, finder.WithObserver(o.observer))
	}

	self := &selfResolver{}
	def, err := nodeDefinition(s, o.runtime, self, o.lookupLimit, o.logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: node definition: %w", err)
	}
	nodes := finder.New(def, finderOpts...)
	self.f = nodes

	graph, err := finder.NewGraphFinder(nodes, storeTraverser{store: s},
		finder.WithGraphLookupLimit(o.graphLookupLimit),
		finder.WithGraphFinderOptions(finderOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: graph definition: %w", err)
	}

	return &Catalog{store: s, nodes: nodes, graph: graph}, nil
}

// Nodes returns the node finder.
func (c *Catalog) Nodes() *finder.Finder[*store.Node] { return c.nodes }

// Graph returns the dependency graph finder.
func (c *Catalog) Graph() *finder.GraphFinder[*store.Node] { return c.graph }

// Store returns the backing store.
func (c *Catalog) Store() *store.Store { return c.store }
