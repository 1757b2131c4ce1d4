package finder

import "strconv"

// Traverser supplies the links of a directed graph of items.
type Traverser[ITEM any] interface {
	Children(item ITEM) ([]ITEM, error)
	Parents(item ITEM) ([]ITEM, error)
}

// Graph query dimensions.
const (
	DimFrom           = "from"
	DimTo             = "to"
	DimStop           = "stop"
	DimRecursive      = "recursive"
	DimIncludeInitial = "includeInitial"
)

// DefaultGraphLookupLimit caps result growth for graph queries that set no
// lookupLimit.
const DefaultGraphLookupLimit = 10000

// GraphFinder answers reachability queries over a Traverser. Seed sets for
// from, to and stop are nested locators resolved through a base finder.
//
// from expands downwards through Children, to expands upwards through
// Parents. Expansion does not continue past nodes in stop (or, for each
// direction, past the seeds of the other one); such nodes are still part of
// the result. When both from and to are given the result is the intersection
// of the two expansions: the nodes lying between them.
type GraphFinder[ITEM any] struct {
	*Finder[ITEM]
	base      *Finder[ITEM]
	traverser Traverser[ITEM]
}

type graphOptions struct {
	lookupLimit int
	finderOpts  []Option
}

// GraphOption configures a GraphFinder.
type GraphOption func(*graphOptions)

// WithGraphLookupLimit sets the default cap on result growth.
func WithGraphLookupLimit(n int) GraphOption {
	return func(o *graphOptions) {
		o.lookupLimit = n
	}
}

// WithGraphFinderOptions passes options to the underlying Finder.
func WithGraphFinderOptions(opts ...Option) GraphOption {
	return func(o *graphOptions) {
		o.finderOpts = append(o.finderOpts, opts...)
	}
}

// NewGraphFinder builds a graph finder over base.
func NewGraphFinder[ITEM any](base *Finder[ITEM], t Traverser[ITEM], opts ...GraphOption) (*GraphFinder[ITEM], error) {
	o := graphOptions{lookupLimit: DefaultGraphLookupLimit}
	for _, opt := range opts {
		opt(&o)
	}
	g := &GraphFinder[ITEM]{base: base, traverser: t}

	ref := Reference[ITEM](base)
	b := NewBuilder[ITEM](base.def.entity+" graph").
		Description("items linked to seed items").
		ItemKey(base.def.key).
		DefaultLookupLimit(o.lookupLimit)

	Dim(b, NewDimension[*ItemSet[ITEM]](DimFrom), ref).
		Description("expand to everything reachable downwards from these items.").
		Syntax("<" + base.def.entity + " locator>")
	Dim(b, NewDimension[*ItemSet[ITEM]](DimTo), ref).
		Description("expand to everything reachable upwards from these items.").
		Syntax("<" + base.def.entity + " locator>")
	Dim(b, NewDimension[*ItemSet[ITEM]](DimStop), ref).
		Description("do not expand past these items.").
		Syntax("<" + base.def.entity + " locator>")
	Dim(b, NewDimension[bool](DimRecursive), ParseBool).
		Description("follow links transitively; false returns direct links only.").
		Syntax("true/false").
		WithDefault("true")
	Dim(b, NewDimension[bool](DimIncludeInitial), ParseBool).
		Description("include the seed items in the result.").
		Syntax("true/false").
		WithDefault("false")

	b.MultipleConvertToItemHolder(AnyOf(Present(DimFrom), Present(DimTo)), g.reachable)
	b.MultipleConvertToItemHolder(Always(), func(*Locator) (ItemHolder[ITEM], error) {
		return nil, malformedf("graph locator needs %s or %s", DimFrom, DimTo)
	})

	def, err := b.Build()
	if err != nil {
		return nil, err
	}
	g.Finder = New(def, o.finderOpts...)
	return g, nil
}

// graphQuery is one parsed reachability request.
type graphQuery[ITEM any] struct {
	from, to, stop *ItemSet[ITEM]
	recursive      bool
	includeInitial bool
	limit          int
}

func (g *GraphFinder[ITEM]) reachable(l *Locator) (ItemHolder[ITEM], error) {
	gq, err := g.parse(l)
	if err != nil {
		return nil, err
	}
	key := g.def.key

	var result *ItemSet[ITEM]
	if gq.from != nil {
		barrier := union(key, gq.to, gq.stop)
		result, err = g.expand(gq.from.Items(), g.traverser.Children, barrier, gq)
		if err != nil {
			return nil, err
		}
	}
	if gq.to != nil {
		barrier := union(key, gq.from, gq.stop)
		up, err := g.expand(gq.to.Items(), g.traverser.Parents, barrier, gq)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = up
		} else {
			result = intersect(key, result, up)
		}
	}

	if gq.includeInitial {
		seeds := union(key, gq.from, gq.to)
		for _, item := range result.Items() {
			seeds.Add(item)
		}
		result = seeds
	}
	return HolderOf(result.Items()), nil
}

func (g *GraphFinder[ITEM]) parse(l *Locator) (graphQuery[ITEM], error) {
	gq := graphQuery[ITEM]{limit: g.def.lookupLimit}
	var err error
	for _, d := range []struct {
		name string
		dst  **ItemSet[ITEM]
	}{{DimFrom, &gq.from}, {DimTo, &gq.to}, {DimStop, &gq.stop}} {
		if *d.dst, err = g.seeds(l, d.name); err != nil {
			return gq, err
		}
	}
	if gq.recursive, err = boolDimension(l, DimRecursive, true); err != nil {
		return gq, err
	}
	if gq.includeInitial, err = boolDimension(l, DimIncludeInitial, false); err != nil {
		return gq, err
	}
	// lookupLimit is consumed by the engine; peek to bound the expansion.
	// Zero means unbounded, as in Run.
	if raw := l.Peek(DimLookupLimit); len(raw) == 1 {
		if n, err := strconv.Atoi(raw[0]); err == nil && n >= 0 {
			gq.limit = n
		}
	}
	return gq, nil
}

// seeds resolves every value of a seed dimension and merges the sets.
// It returns nil when the dimension is absent.
func (g *GraphFinder[ITEM]) seeds(l *Locator, name string) (*ItemSet[ITEM], error) {
	if !l.Has(name) {
		return nil, nil
	}
	sets, err := mapValues(l, NewDimension[*ItemSet[ITEM]](name), Reference[ITEM](g.base))
	if err != nil {
		return nil, err
	}
	merged := NewItemSet[ITEM](nil, g.def.key)
	for _, s := range sets {
		for _, item := range s.Items() {
			merged.Add(item)
		}
	}
	return merged, nil
}

func boolDimension(l *Locator, name string, def bool) (bool, error) {
	raw, ok, err := l.Value(name)
	if err != nil || !ok {
		return def, err
	}
	b, err := ParseBool(raw)
	if err != nil {
		return false, invalidValue(name, raw, err)
	}
	return b, nil
}

// expand runs a breadth-first search from seeds. Seeds are expanded but not
// added; barrier nodes are added but not expanded. Only newly discovered
// nodes are queued. Growth stops one past the limit so the paging step can
// report that the lookup limit was reached.
func (g *GraphFinder[ITEM]) expand(seeds []ITEM, next func(ITEM) ([]ITEM, error), barrier *ItemSet[ITEM], gq graphQuery[ITEM]) (*ItemSet[ITEM], error) {
	key := g.def.key
	result := NewItemSet[ITEM](nil, key)
	full := func() bool { return gq.limit > 0 && result.Len() > gq.limit }

	queue := seeds
	for depth := 0; len(queue) > 0 && !full(); depth++ {
		if depth > 0 && !gq.recursive {
			break
		}
		var frontier []ITEM
		for _, item := range queue {
			if depth > 0 && barrier.Contains(item) {
				continue
			}
			linked, err := next(item)
			if err != nil {
				return nil, err
			}
			for _, n := range linked {
				if result.Add(n) {
					frontier = append(frontier, n)
				}
				if full() {
					return result, nil
				}
			}
		}
		queue = frontier
	}
	return result, nil
}

func union[ITEM any](key func(ITEM) any, sets ...*ItemSet[ITEM]) *ItemSet[ITEM] {
	out := NewItemSet[ITEM](nil, key)
	for _, s := range sets {
		for _, item := range s.Items() {
			out.Add(item)
		}
	}
	return out
}

func intersect[ITEM any](key func(ITEM) any, a, b *ItemSet[ITEM]) *ItemSet[ITEM] {
	out := NewItemSet[ITEM](nil, key)
	for _, item := range a.Items() {
		if b.Contains(item) {
			out.Add(item)
		}
	}
	return out
}
