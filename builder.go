package finder

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// Reserved dimensions understood by every finder.
const (
	DimCount       = "count"
	DimStart       = "start"
	DimLookupLimit = "lookupLimit"
	DimItem        = "item"
	DimUnique      = "unique"
)

var reservedDimensions = []string{DimCount, DimStart, DimLookupLimit, DimItem, DimUnique, HelpDimension}

// sourceRule produces candidates. resolve may return ErrSkipRule. Rules that
// need the item key set bind instead; Build turns it into resolve.
type sourceRule[ITEM any] struct {
	name    string
	cond    DimensionCondition
	resolve func(l *Locator) (ItemHolder[ITEM], error)
	bind    func(key func(ITEM) any) func(l *Locator) (ItemHolder[ITEM], error)
}

// filterRule narrows candidates. build may return ErrSkipRule.
type filterRule[ITEM any] struct {
	name  string
	cond  DimensionCondition
	build func(l *Locator) (ItemFilter[ITEM], error)
}

type dimensionInfo struct {
	name        string
	description string
	syntax      string
	hidden      bool
	defaults    []string

	descriptionSet bool
	hiddenSet      bool
}

// Builder collects the dimensions and rules for one entity type. It is not
// safe for concurrent use; call Build once and share the Definition.
type Builder[ITEM any] struct {
	entity      string
	description string
	dims        map[string]*dimensionInfo
	order       []string
	sources     []sourceRule[ITEM]
	filters     []filterRule[ITEM]
	findSingle  func(l *Locator) (ITEM, bool, error)
	key         func(ITEM) any
	lookupLimit int
	errs        []error
}

// NewBuilder starts a definition for the named entity type.
func NewBuilder[ITEM any](entity string) *Builder[ITEM] {
	return &Builder[ITEM]{
		entity: entity,
		dims:   make(map[string]*dimensionInfo),
	}
}

func (b *Builder[ITEM]) fail(format string, args ...any) {
	b.errs = append(b.errs, configErrorf("%s: "+format, append([]any{b.entity}, args...)...))
}

// Description sets the entity description shown in help.
func (b *Builder[ITEM]) Description(text string) *Builder[ITEM] {
	b.description = text
	return b
}

// ItemKey sets the identity used to intersect and deduplicate items. It is
// required when ITEM is not comparable.
func (b *Builder[ITEM]) ItemKey(key func(ITEM) any) *Builder[ITEM] {
	b.key = key
	return b
}

// DefaultLookupLimit caps how many candidates a query scans when the locator
// does not set lookupLimit. Zero means unbounded.
func (b *Builder[ITEM]) DefaultLookupLimit(n int) *Builder[ITEM] {
	if n < 0 {
		b.fail("negative default lookup limit %d", n)
		return b
	}
	b.lookupLimit = n
	return b
}

// MultipleConvertToItems registers a candidate source returning a slice.
func (b *Builder[ITEM]) MultipleConvertToItems(cond DimensionCondition, fn func(l *Locator) ([]ITEM, error)) *Builder[ITEM] {
	return b.MultipleConvertToItemHolder(cond, func(l *Locator) (ItemHolder[ITEM], error) {
		items, err := fn(l)
		if err != nil {
			return nil, err
		}
		return HolderOf(items), nil
	})
}

// MultipleConvertToItemHolder registers a candidate source returning a lazy
// holder. Sources are tried in registration order.
func (b *Builder[ITEM]) MultipleConvertToItemHolder(cond DimensionCondition, fn func(l *Locator) (ItemHolder[ITEM], error)) *Builder[ITEM] {
	b.sources = append(b.sources, sourceRule[ITEM]{name: cond.String(), cond: cond, resolve: fn})
	return b
}

// Filter registers a filter rule. Every matching filter rule is AND-combined.
func (b *Builder[ITEM]) Filter(cond DimensionCondition, fn func(l *Locator) (ItemFilter[ITEM], error)) *Builder[ITEM] {
	b.filters = append(b.filters, filterRule[ITEM]{name: cond.String(), cond: cond, build: fn})
	return b
}

// SingleDimension sets how a bare single-value locator is turned into
// candidates, for example by treating it as an id.
func (b *Builder[ITEM]) SingleDimension(fn func(value string) ([]ITEM, error)) *Builder[ITEM] {
	return b.MultipleConvertToItems(SingleValue(), func(l *Locator) ([]ITEM, error) {
		v, _ := l.SingleValue()
		return fn(v)
	})
}

// FindSingleItem registers the single-item shortcut. fn returns ErrSkipRule
// when the locator does not identify one item; otherwise found reports
// whether the item exists.
func (b *Builder[ITEM]) FindSingleItem(fn func(l *Locator) (item ITEM, found bool, err error)) *Builder[ITEM] {
	if b.findSingle != nil {
		b.fail("single item rule already set")
		return b
	}
	b.findSingle = fn
	return b
}

// Build freezes the builder into a Definition. All configuration errors
// collected along the way are returned together.
func (b *Builder[ITEM]) Build() (*Definition[ITEM], error) {
	if len(b.sources) == 0 && b.findSingle == nil {
		b.fail("no candidate sources registered")
	}
	key := b.key
	if key == nil {
		if !reflect.TypeFor[ITEM]().Comparable() {
			b.fail("item type %s is not comparable, set ItemKey", reflect.TypeFor[ITEM]())
		}
		key = func(item ITEM) any { return item }
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	d := &Definition[ITEM]{
		entity:      b.entity,
		description: b.description,
		dims:        make(map[string]DimensionInfo, len(b.dims)),
		order:       slices.Clone(b.order),
		sources:     make([]sourceRule[ITEM], len(b.sources)),
		filters:     slices.Clone(b.filters),
		findSingle:  b.findSingle,
		key:         key,
		lookupLimit: b.lookupLimit,
		defaults:    make(map[string][]string),
	}
	for i, rule := range b.sources {
		if rule.bind != nil {
			rule.resolve = rule.bind(key)
			rule.bind = nil
		}
		d.sources[i] = rule
	}
	for _, name := range b.order {
		info := b.dims[name]
		d.dims[name] = DimensionInfo{
			Name:        info.name,
			Description: info.description,
			Syntax:      info.syntax,
			Hidden:      info.hidden,
			Defaults:    slices.Clone(info.defaults),
		}
		if len(info.defaults) > 0 {
			d.defaults[name] = slices.Clone(info.defaults)
		}
		if info.hidden {
			d.hidden = append(d.hidden, name)
		}
	}
	return d, nil
}

// MustBuild is Build for package-level definitions. It panics on error.
func (b *Builder[ITEM]) MustBuild() *Definition[ITEM] {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// DimensionHandle configures one typed dimension.
type DimensionHandle[T, ITEM any] struct {
	b      *Builder[ITEM]
	dim    Dimension[T]
	mapper ValueMapper[T]
	info   *dimensionInfo
}

// Dim registers dimension d on b. Methods cannot take type parameters, so
// this is a function rather than a Builder method.
func Dim[T, ITEM any](b *Builder[ITEM], d Dimension[T], mapper ValueMapper[T]) *DimensionHandle[T, ITEM] {
	info := &dimensionInfo{name: d.Name()}
	switch {
	case !validName(d.Name()) || d.Name()[0] == '$':
		b.fail("invalid dimension name %q", d.Name())
	case slices.Contains(reservedDimensions, d.Name()):
		b.fail("dimension %q is reserved", d.Name())
	case b.dims[d.Name()] != nil:
		b.fail("dimension %q registered twice", d.Name())
	default:
		b.dims[d.Name()] = info
		b.order = append(b.order, d.Name())
	}
	return &DimensionHandle[T, ITEM]{b: b, dim: d, mapper: mapper, info: info}
}

// Dimension returns the dimension this handle configures.
func (h *DimensionHandle[T, ITEM]) Dimension() Dimension[T] { return h.dim }

// Description documents the dimension. It may be set once.
func (h *DimensionHandle[T, ITEM]) Description(text string) *DimensionHandle[T, ITEM] {
	if h.info.descriptionSet {
		h.b.fail("description of %q set twice", h.dim.Name())
		return h
	}
	h.info.description = text
	h.info.descriptionSet = true
	return h
}

// Syntax documents the accepted value format.
func (h *DimensionHandle[T, ITEM]) Syntax(text string) *DimensionHandle[T, ITEM] {
	h.info.syntax = text
	return h
}

// Hidden keeps the dimension out of help and exempts it from the unused
// dimension check. It may be set once.
func (h *DimensionHandle[T, ITEM]) Hidden() *DimensionHandle[T, ITEM] {
	if h.info.hiddenSet {
		h.b.fail("hidden flag of %q set twice", h.dim.Name())
		return h
	}
	h.info.hidden = true
	h.info.hiddenSet = true
	return h
}

// WithDefault supplies raw as the value when a dimension locator omits the
// dimension.
func (h *DimensionHandle[T, ITEM]) WithDefault(raw string) *DimensionHandle[T, ITEM] {
	if _, err := h.mapper(raw); err != nil {
		h.b.fail("default %q for %q: %v", raw, h.dim.Name(), err)
		return h
	}
	h.info.defaults = append(h.info.defaults, raw)
	return h
}

func mapValues[T any](l *Locator, d Dimension[T], mapper ValueMapper[T]) ([]T, error) {
	raws := l.Values(d.Name())
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := mapper(raw)
		if err != nil {
			return nil, invalidValue(d.Name(), raw, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Filter registers a predicate applied when the dimension is present. If the
// dimension is given several times, an item passes when the predicate holds
// for any of the values.
func (h *DimensionHandle[T, ITEM]) Filter(pred func(value T, item ITEM) bool) *DimensionHandle[T, ITEM] {
	dim, mapper := h.dim, h.mapper
	h.b.filters = append(h.b.filters, filterRule[ITEM]{
		name: dim.Name(),
		cond: Present(dim.Name()),
		build: func(l *Locator) (ItemFilter[ITEM], error) {
			vals, err := mapValues(l, dim, mapper)
			if err != nil {
				return nil, err
			}
			return FilterFunc[ITEM](func(item ITEM) bool {
				for _, v := range vals {
					if pred(v, item) {
						return true
					}
				}
				return false
			}), nil
		},
	})
	return h
}

// ToItems registers the dimension as a candidate source. If the dimension is
// given several times, the candidates are the intersection of the item sets
// of each value.
func (h *DimensionHandle[T, ITEM]) ToItems(fn func(value T) ([]ITEM, error)) *DimensionHandle[T, ITEM] {
	dim, mapper := h.dim, h.mapper
	h.b.sources = append(h.b.sources, sourceRule[ITEM]{
		name: dim.Name(),
		cond: Present(dim.Name()),
		bind: func(key func(ITEM) any) func(l *Locator) (ItemHolder[ITEM], error) {
			return func(l *Locator) (ItemHolder[ITEM], error) {
				vals, err := mapValues(l, dim, mapper)
				if err != nil {
					return nil, err
				}
				items, err := intersectItems(vals, fn, key)
				if err != nil {
					return nil, fmt.Errorf("dimension %q: %w", dim.Name(), err)
				}
				return HolderOf(items), nil
			}
		},
	})
	return h
}

}

func intersectItems[T, ITEM any](vals []T, fn func(T) ([]ITEM, error), key func(ITEM) any) ([]ITEM, error) {
	var result []ITEM
	for i, v := range vals {
		items, err := fn(v)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = NewItemSet(items, key).Items()
		} else {
			next := NewItemSet(items, key)
			result = slices.DeleteFunc(result, func(item ITEM) bool { return !next.Contains(item) })
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

// DefaultFilter registers a filter that extracts a value from the item and
// compares it with the dimension value using check.
func DefaultFilter[T, V, ITEM any](h *DimensionHandle[T, ITEM], check func(want T, got V) bool, value func(item ITEM) V) *DimensionHandle[T, ITEM] {
	return h.Filter(func(want T, item ITEM) bool {
		return check(want, value(item))
	})
}
