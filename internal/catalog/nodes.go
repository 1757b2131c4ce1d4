// Package catalog defines the finders over the dependency catalog kept in
// the store: a node finder and a dependency graph finder.
package catalog

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	finder "github.com/jward/finder"
	"github.com/jward/finder/internal/runtime"
	"github.com/jward/finder/internal/store"
)

// Node finder dimensions.
const (
	DimID              = "id"
	DimUUID            = "uuid"
	DimName            = "name"
	DimKind            = "kind"
	DimTag             = "tag"
	DimPath            = "path"
	DimHasDependencies = "hasDependencies"
	DimDependsOn       = "dependsOn"
	DimDependedOnBy    = "dependedOnBy"
	DimExpr            = "expr"
)

// Default lookup limits.
const (
	DefaultLookupLimit      = 10000
	DefaultGraphLookupLimit = finder.DefaultGraphLookupLimit
)

func nodeKey(n *store.Node) any { return n.ID }

// selfResolver lets the node definition reference the node finder that is
// built from it.
type selfResolver struct {
	f *finder.Finder[*store.Node]
}

func (r *selfResolver) Items(text string) (*finder.PagedResult[*store.Node], error) {
	return r.f.Items(text)
}

func (r *selfResolver) Key(n *store.Node) any { return nodeKey(n) }

// parseUUID is the value mapper for uuid: it accepts any form uuid.Parse
// does and normalizes to the canonical text.
func parseUUID(raw string) (string, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// nodeDefinition describes how node locators map onto the store.
func nodeDefinition(s *store.Store, rt *runtime.Runtime, self finder.Resolver[*store.Node], lookupLimit int, logger *zap.Logger) (*finder.Definition[*store.Node], error) {
	ctx := context.Background()
	b := finder.NewBuilder[*store.Node]("node").
		Description("packages, modules and services in the dependency catalog").
		ItemKey(nodeKey).
		DefaultLookupLimit(lookupLimit)

	b.FindSingleItem(func(l *finder.Locator) (*store.Node, bool, error) {
		return findSingleNode(s, l)
	})

	id := finder.Dim(b, finder.NewDimension[int64](DimID), finder.ParseInt64).
		Description("numeric node id.").
		Syntax("<int>").
		ToItems(func(id int64) ([]*store.Node, error) {
			n, err := s.NodeByID(id)
			if err != nil || n == nil {
				return nil, err
			}
			return []*store.Node{n}, nil
		})
	finder.DefaultFilter(id, finder.Equal[int64], func(n *store.Node) int64 { return n.ID })

	uid := finder.Dim(b, finder.NewDimension[string](DimUUID), parseUUID).
		Description("stable external id assigned when the node was stored.").
		Syntax("<uuid>").
		ToItems(func(u string) ([]*store.Node, error) {
			n, err := s.NodeByUUID(u)
			if err != nil || n == nil {
				return nil, err
			}
			return []*store.Node{n}, nil
		})
	finder.DefaultFilter(uid, finder.Equal[string], func(n *store.Node) string { return n.UUID })

	name := finder.Dim(b, finder.NewDimension[finder.ValueCondition](DimName), finder.ParseValueCondition).
		Description("node name; import path for indexed packages.").
		Syntax(finder.ValueConditionSyntax)
	finder.DefaultFilter(name, finder.MatchValueCondition, func(n *store.Node) string { return n.Name })
	b.MultipleConvertToItems(finder.Present(DimName), func(l *finder.Locator) ([]*store.Node, error) {
		raws := l.Peek(DimName)
		if len(raws) != 1 {
			return nil, finder.ErrSkipRule
		}
		cond, err := finder.ParseValueCondition(raws[0])
		if err != nil {
			return nil, finder.InvalidValue(DimName, raws[0], err)
		}
		if cond.Type != finder.MatchEquals || cond.IgnoreCase {
			return nil, finder.ErrSkipRule
		}
		l.Values(DimName)
		return s.NodesByName(cond.Value)
	})

	kind := finder.Dim(b, finder.NewDimension[string](DimKind), finder.ParseEnum(store.NodeKinds...)).
		Description("node kind.").
		Syntax("package/module/service/library/file").
		ToItems(s.NodesByKind)
	finder.DefaultFilter(kind, finder.Equal[string], func(n *store.Node) string { return n.Kind })

	finder.Dim(b, finder.NewDimension[string](DimTag), finder.ParseString).
		Description("node carries this tag; repeat to accept any of several tags.").
		Syntax("<tag>").
		Filter(func(tag string, n *store.Node) bool { return n.HasTag(tag) })

	path := finder.Dim(b, finder.NewDimension[finder.ValueCondition](DimPath), finder.ParseValueCondition).
		Description("node path, e.g. (value:internal/**,matchType:glob).").
		Syntax(finder.ValueConditionSyntax)
	finder.DefaultFilter(path, finder.MatchValueCondition, func(n *store.Node) string { return n.Path })

	hasDeps := finder.Dim(b, finder.NewDimension[*bool](DimHasDependencies), finder.ParseBoolOrAny).
		Description("node has at least one outgoing dependency edge.").
		Syntax("true/false/any")
	finder.DefaultFilter(hasDeps, finder.MatchBoolOrAny, func(n *store.Node) bool {
		ids, err := s.ChildIDs(n.ID)
		if err != nil {
			logger.Warn("child lookup failed", zap.Int64("node", n.ID), zap.Error(err))
			return false
		}
		return len(ids) > 0
	})

	ref := finder.Reference(self)
	finder.Dim(b, finder.NewDimension[*finder.ItemSet[*store.Node]](DimDependsOn), ref).
		Description("node depends directly on one of the referenced nodes.").
		Syntax("<node locator>").
		Filter(func(set *finder.ItemSet[*store.Node], n *store.Node) bool {
			children, err := s.Children(n.ID)
			if err != nil {
				logger.Warn("child lookup failed", zap.Int64("node", n.ID), zap.Error(err))
				return false
			}
			return finder.ContainsAny(set, children)
		})
	finder.Dim(b, finder.NewDimension[*finder.ItemSet[*store.Node]](DimDependedOnBy), ref).
		Description("one of the referenced nodes depends directly on this node.").
		Syntax("<node locator>").
		Filter(func(set *finder.ItemSet[*store.Node], n *store.Node) bool {
			parents, err := s.Parents(n.ID)
			if err != nil {
				logger.Warn("parent lookup failed", zap.Int64("node", n.ID), zap.Error(err))
				return false
			}
			return finder.ContainsAny(set, parents)
		})

	finder.Dim(b, finder.NewDimension[*runtime.Predicate](DimExpr), func(raw string) (*runtime.Predicate, error) {
		return rt.Compile(ctx, raw)
	}).
		Hidden().
		Filter(func(p *runtime.Predicate, n *store.Node) bool {
			ok, err := p.Eval(ctx, n)
			if err != nil {
				logger.Warn("expression failed", zap.String("expr", p.Source()), zap.Error(err))
				return false
			}
			return ok
		})

	b.SingleDimension(s.NodesByName)

	b.MultipleConvertToItemHolder(finder.Always(), func(*finder.Locator) (finder.ItemHolder[*store.Node], error) {
		return finder.FromSeq2(s.AllNodes(ctx)), nil
	})

	return b.Build()
}

// findSingleNode resolves a bare id or uuid, or a locator naming exactly one
// id or uuid, without scanning.
func findSingleNode(s *store.Store, l *finder.Locator) (*store.Node, bool, error) {
	if raw, ok := l.SingleValue(); ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return found(s.NodeByID(id))
		}
		if u, err := uuid.Parse(raw); err == nil {
			return found(s.NodeByUUID(u.String()))
		}
		return nil, false, finder.ErrSkipRule
	}

	if ids := l.Peek(DimID); len(ids) == 1 {
		id, err := finder.ParseInt64(ids[0])
		if err != nil {
			return nil, false, finder.InvalidValue(DimID, ids[0], err)
		}
		l.Values(DimID)
		return found(s.NodeByID(id))
	}
	if uuids := l.Peek(DimUUID); len(uuids) == 1 {
		u, err := parseUUID(uuids[0])
		if err != nil {
			return nil, false, finder.InvalidValue(DimUUID, uuids[0], err)
		}
		l.Values(DimUUID)
		return found(s.NodeByUUID(u))
	}
	return nil, false, finder.ErrSkipRule
}

func found(n *store.Node, err error) (*store.Node, bool, error) {
	if err != nil {
		return nil, false, err
	}
	return n, n != nil, nil
}

// storeTraverser walks dependency edges: children are dependencies, parents
// are dependents.
type storeTraverser struct {
	store *store.Store
}

func (t storeTraverser) Children(n *store.Node) ([]*store.Node, error) {
	return t.store.Children(n.ID)
}

func (t storeTraverser) Parents(n *store.Node) ([]*store.Node, error) {
	return t.store.Parents(n.ID)
}
