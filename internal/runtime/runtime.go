package runtime

import (
	"context"
	"fmt"
	"maps"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/builtins"
	"github.com/risor-io/risor/compiler"
	modStrings "github.com/risor-io/risor/modules/strings"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"go.uber.org/zap"

	"github.com/jward/finder/internal/store"
)

// NodeGraph gives scripts access to a node's neighbours. *store.Store
// satisfies it.
type NodeGraph interface {
	Children(id int64) ([]*store.Node, error)
	Parents(id int64) ([]*store.Node, error)
}

// Runtime embeds a Risor VM used to evaluate node predicates. Scripts see a
// restricted set of globals: the core builtins, the strings module, glob,
// log and, when a graph is configured, children and parents.
type Runtime struct {
	graph   NodeGraph
	logger  *zap.Logger
	globals map[string]any
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithGraph exposes children(id) and parents(id) to scripts.
func WithGraph(g NodeGraph) RuntimeOption {
	return func(r *Runtime) {
		r.graph = g
	}
}

// WithLogger routes the script log object to logger.
func WithLogger(logger *zap.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.globals = r.buildGlobals()
	return r
}

// RunSource executes Risor source code directly with the runtime globals
// plus any extra globals, and returns the value of the last expression.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (object.Object, error) {
	res, err := risor.Eval(ctx, source, r.options(extraGlobals)...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script <inline>: %w", err)
	}
	return res, nil
}

// Predicate is a compiled node predicate. It is safe for concurrent use;
// every evaluation runs in its own VM.
type Predicate struct {
	rt     *Runtime
	source string
	code   *compiler.Code
}

// Compile parses and compiles source once. The script sees the node being
// tested as the global node, a map with id, uuid, name, kind, path, tags
// and created_at.
func (r *Runtime) Compile(ctx context.Context, source string) (*Predicate, error) {
	cfg := risor.NewConfig(r.options(map[string]any{"node": object.Nil})...)
	ast, err := parser.Parse(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("runtime: parse %q: %w", source, err)
	}
	code, err := compiler.Compile(ast, cfg.CompilerOpts()...)
	if err != nil {
		return nil, fmt.Errorf("runtime: compile %q: %w", source, err)
	}
	return &Predicate{rt: r, source: source, code: code}, nil
}

// Source returns the predicate's source text.
func (p *Predicate) Source() string { return p.source }

// Eval runs the predicate against n and reports whether the result is
// truthy.
func (p *Predicate) Eval(ctx context.Context, n *store.Node) (bool, error) {
	res, err := risor.EvalCode(ctx, p.code, p.rt.options(map[string]any{"node": nodeToMap(n)})...)
	if err != nil {
		return false, fmt.Errorf("runtime: eval %q on node %d: %w", p.source, n.ID, err)
	}
	if errObj, ok := res.(*object.Error); ok {
		return false, fmt.Errorf("runtime: eval %q on node %d: %w", p.source, n.ID, errObj.Value())
	}
	return res.IsTruthy(), nil
}

func (r *Runtime) options(extra map[string]any) []risor.Option {
	opts := []risor.Option{
		risor.WithoutDefaultGlobals(),
		risor.WithGlobals(r.globals),
	}
	for name, val := range extra {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	return opts
}

// buildGlobals constructs the globals exposed to every script.
func (r *Runtime) buildGlobals() map[string]any {
	globals := map[string]any{}
	for name, fn := range builtins.Builtins() {
		globals[name] = fn
	}
	maps.Copy(globals, map[string]any{
		"strings": modStrings.Module(),
		"glob":    makeGlobFn(),
		"log":     mustProxy(&logObject{logger: r.logger}),
	})
	if r.graph != nil {
		globals["children"] = makeNeighboursFn("children", r.graph.Children)
		globals["parents"] = makeNeighboursFn("parents", r.graph.Parents)
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.Info, log.Warn and log.Error to scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, zap.String("source", "script"))
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, zap.String("source", "script"))
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, zap.String("source", "script"))
}
