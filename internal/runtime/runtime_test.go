package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/finder/internal/store"
)

// memGraph is an in-memory NodeGraph keyed by node id.
type memGraph struct {
	nodes    map[int64]*store.Node
	children map[int64][]int64
}

func (g *memGraph) Children(id int64) ([]*store.Node, error) {
	if id < 0 {
		return nil, errors.New("boom")
	}
	return g.resolve(g.children[id]), nil
}

func (g *memGraph) Parents(id int64) ([]*store.Node, error) {
	var ids []int64
	for from, tos := range g.children {
		for _, to := range tos {
			if to == id {
				ids = append(ids, from)
			}
		}
	}
	return g.resolve(ids), nil
}

func (g *memGraph) resolve(ids []int64) []*store.Node {
	out := make([]*store.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

func testNode(id int64, name, path string, tags ...string) *store.Node {
	return &store.Node{
		ID:        id,
		UUID:      "uuid-" + name,
		Name:      name,
		Kind:      store.KindPackage,
		Path:      path,
		Tags:      tags,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newTestGraph() *memGraph {
	return &memGraph{
		nodes: map[int64]*store.Node{
			1: testNode(1, "api", "cmd/api", "prod"),
			2: testNode(2, "store", "internal/store"),
			3: testNode(3, "log", "internal/log", "core", "prod"),
		},
		children: map[int64][]int64{1: {2, 3}, 2: {3}},
	}
}

func mustCompile(t *testing.T, rt *Runtime, src string) *Predicate {
	t.Helper()
	p, err := rt.Compile(context.Background(), src)
	require.NoError(t, err)
	return p
}

// =============================================================================
// Predicates
// =============================================================================

func TestPredicate_NodeFields(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()
	g := newTestGraph()

	tests := []struct {
		src  string
		node int64
		want bool
	}{
		{`node.name == "api"`, 1, true},
		{`node.name == "api"`, 2, false},
		{`node.id > 1`, 3, true},
		{`node.kind == "package"`, 2, true},
		{`len(node.tags) == 2`, 3, true},
		{`len(node.tags) == 0`, 2, true},
		{`strings.has_prefix(node.path, "internal/")`, 2, true},
		{`strings.has_prefix(node.path, "internal/")`, 1, false},
		{`glob("internal/**", node.path)`, 3, true},
		{`glob("cmd/*", node.path)`, 3, false},
		{`node.created_at`, 1, true},
		{`node.tags`, 2, false},
		{`node.tags`, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			p := mustCompile(t, rt, tt.src)
			got, err := p.Eval(context.Background(), g.nodes[tt.node])
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.src, p.Source())
		})
	}
}

func TestPredicate_Graph(t *testing.T) {
	t.Parallel()
	g := newTestGraph()
	rt := NewRuntime(WithGraph(g))

	p := mustCompile(t, rt, `len(children(node)) == 2`)
	ok, err := p.Eval(context.Background(), g.nodes[1])
	require.NoError(t, err)
	assert.True(t, ok)

	p = mustCompile(t, rt, `len(parents(node.id)) == 2`)
	ok, err = p.Eval(context.Background(), g.nodes[3])
	require.NoError(t, err)
	assert.True(t, ok)

	p = mustCompile(t, rt, `children(node)[0].name == "store"`)
	ok, err = p.Eval(context.Background(), g.nodes[1])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()

	tests := map[string]string{
		"syntax":              `node.name ==`,
		"no graph configured": `children(node)`,
		"no os module":        `os.getenv("HOME")`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := rt.Compile(context.Background(), src)
			assert.Error(t, err)
		})
	}
}

func TestPredicate_EvalErrors(t *testing.T) {
	t.Parallel()
	g := newTestGraph()
	rt := NewRuntime(WithGraph(g))
	node := g.nodes[1]

	for _, src := range []string{
		`glob(1, node.path)`,
		`children()`,
		`children("x")`,
		`children(-1)`,
	} {
		p := mustCompile(t, rt, src)
		_, err := p.Eval(context.Background(), node)
		assert.Error(t, err, src)
	}
}

func TestPredicate_ConcurrentEval(t *testing.T) {
	t.Parallel()
	g := newTestGraph()
	p := mustCompile(t, NewRuntime(), `node.id % 2 == 1`)

	var wg sync.WaitGroup
	results := make([]bool, 30)
	errs := make([]error, 30)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Eval(context.Background(), g.nodes[int64(i%3)+1])
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, (i%3+1)%2 == 1, results[i])
	}
}

// =============================================================================
// RunSource & logging
// =============================================================================

func TestRunSource(t *testing.T) {
	t.Parallel()
	rt := NewRuntime()

	res, err := rt.RunSource(context.Background(), `1 + 2`, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Interface())

	res, err = rt.RunSource(context.Background(), `x * 2`, map[string]any{"x": 21})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Interface())

	_, err = rt.RunSource(context.Background(), `undefined_thing`, nil)
	assert.Error(t, err)
}

func TestLogObject_WritesToZap(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	rt := NewRuntime(WithLogger(zap.New(core)))

	_, err := rt.RunSource(context.Background(), "log.Info(\"hello\")\nlog.Warn(\"careful\")\nlog.Error(\"bad\")", nil)
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "script", entries[0].ContextMap()["source"])
}
