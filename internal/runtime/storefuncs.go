package runtime

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/risor-io/risor/object"

	"github.com/jward/finder/internal/store"
)

// nodeToMap converts a store.Node to the Risor map scripts receive.
func nodeToMap(n *store.Node) *object.Map {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return object.NewMap(map[string]object.Object{
		"id":         object.NewInt(n.ID),
		"uuid":       object.NewString(n.UUID),
		"name":       object.NewString(n.Name),
		"kind":       object.NewString(n.Kind),
		"path":       object.NewString(n.Path),
		"tags":       object.NewStringList(tags),
		"created_at": object.NewTime(n.CreatedAt),
	})
}

// nodesToList converts a slice of store.Node to a Risor list of maps.
func nodesToList(nodes []*store.Node) object.Object {
	results := make([]object.Object, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, nodeToMap(n))
	}
	return object.NewList(results)
}

// makeNeighboursFn exposes a graph lookup as fn(id_or_node) -> list of
// node maps.
func makeNeighboursFn(name string, lookup func(id int64) ([]*store.Node, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		id, err := nodeID(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		nodes, err := lookup(id)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return nodesToList(nodes)
	})
}

// makeGlobFn exposes doublestar matching as glob(pattern, name) -> bool.
func makeGlobFn() *object.Builtin {
	return object.NewBuiltin("glob", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("glob", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("glob: pattern: %v", err)
		}
		name, err := toString(args[1])
		if err != nil {
			return object.Errorf("glob: name: %v", err)
		}
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return object.Errorf("glob: %v", err)
		}
		return object.NewBool(ok)
	})
}

// nodeID accepts either an id or a node map.
func nodeID(obj object.Object) (int64, error) {
	if m, ok := obj.(*object.Map); ok {
		return toInt64(m.Get("id"))
	}
	return toInt64(obj)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
