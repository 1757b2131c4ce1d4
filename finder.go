package finder

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Finder resolves locators against one Definition. It holds no per-query
// state and is safe for concurrent use.
type Finder[ITEM any] struct {
	def      *Definition[ITEM]
	logger   *zap.Logger
	observer Observer
}

type options struct {
	logger   *zap.Logger
	observer Observer
}

// Option configures a Finder.
type Option func(*options)

// WithLogger sets the logger used for per-query debug entries.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver registers an observer that receives stats for every query.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// New creates a Finder for def.
func New[ITEM any](def *Definition[ITEM], opts ...Option) *Finder[ITEM] {
	o := options{logger: zap.NewNop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return &Finder[ITEM]{def: def, logger: o.logger, observer: o.observer}
}

// Definition returns the definition the finder runs.
func (f *Finder[ITEM]) Definition() *Definition[ITEM] { return f.def }

// Help returns the generated documentation for the finder's dimensions.
func (f *Finder[ITEM]) Help() string { return f.def.Help() }

// Key returns the identity of item.
func (f *Finder[ITEM]) Key(item ITEM) any { return f.def.key(item) }

// Items resolves a locator into a page of items.
func (f *Finder[ITEM]) Items(text string) (*PagedResult[ITEM], error) {
	res, _, err := f.run(text, nil, false)
	return res, err
}

// ItemsFromLocator resolves an already parsed locator. The locator's
// consumption state is updated; do not reuse it for another query.
func (f *Finder[ITEM]) ItemsFromLocator(l *Locator) (*PagedResult[ITEM], error) {
	res, _, err := f.run(l.Text(), l, false)
	return res, err
}

// Item resolves a locator that must identify exactly one item. It fails with
// a NotFound error when nothing matches and with AmbiguousResult when more
// than one item does.
func (f *Finder[ITEM]) Item(text string) (ITEM, error) {
	var zero ITEM
	res, q, err := f.run(text, nil, true)
	if err != nil {
		return zero, err
	}
	switch {
	case len(res.Items) == 1:
		return res.Items[0], nil
	case len(res.Items) > 1:
		return zero, &Error{
			Kind:    KindAmbiguousResult,
			Message: fmt.Sprintf("locator %q matches more than one %s", text, f.def.entity),
		}
	case q.filteredOut:
		return zero, notFoundf("%s %q is filtered out by the other dimensions", f.def.entity, text)
	case res.LookupLimitReached:
		return zero, notFoundf("no %s found for %q within the first %d scanned items, raise %s",
			f.def.entity, text, res.LookupLimit, DimLookupLimit)
	}
	return zero, notFoundf("no %s found for %q", f.def.entity, text)
}

// query carries diagnostics for one resolution.
type query struct {
	stats       QueryStats
	filteredOut bool
}

func (f *Finder[ITEM]) run(text string, l *Locator, single bool) (*PagedResult[ITEM], *query, error) {
	start := time.Now()
	q := &query{stats: QueryStats{Entity: f.def.entity, Locator: text}}

	res, err := f.resolve(text, l, single, q)

	q.stats.Duration = time.Since(start)
	q.stats.ErrorKind = KindOf(err)
	if res != nil {
		q.stats.Scanned = res.Scanned
		q.stats.Matched = len(res.Items)
		q.stats.LookupLimitReached = res.LookupLimitReached
	}
	f.observer.ObserveQuery(q.stats)

	if err != nil && q.stats.ErrorKind != KindHelpRequested {
		f.logger.Debug("finder query failed",
			zap.String("entity", f.def.entity),
			zap.String("locator", text),
			zap.Error(err),
		)
	} else if err == nil {
		f.logger.Debug("finder query",
			zap.String("entity", f.def.entity),
			zap.String("locator", text),
			zap.String("source", q.stats.Source),
			zap.Int("filters_applied", q.stats.FiltersApplied),
			zap.Int("filters_skipped", q.stats.FiltersSkipped),
			zap.Int("scanned", q.stats.Scanned),
			zap.Int("matched", q.stats.Matched),
			zap.Bool("lookup_limit_reached", q.stats.LookupLimitReached),
			zap.Duration("duration", q.stats.Duration),
		)
	}
	return res, q, err
}

func (f *Finder[ITEM]) resolve(text string, l *Locator, single bool, q *query) (*PagedResult[ITEM], error) {
	if l == nil {
		var err error
		if l, err = ParseWithDefaults(text, f.def.defaults); err != nil {
			return nil, err
		}
	}
	if v, ok := l.SingleValue(); (ok && v == HelpDimension) || l.Has(HelpDimension) {
		return nil, helpRequested(f.def.Help())
	}

	var unknown []string
	for _, name := range l.Names() {
		if !f.def.known(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, unknownDimensions(unknown)
	}

	paging, unique, err := readPaging(l, single)
	if err != nil {
		return nil, err
	}

	if f.def.findSingle != nil {
		res, ok, err := f.findSingle(l, paging, q)
		if err != nil || ok {
			return res, err
		}
	}

	holder, consumed, err := f.source(l, q)
	if err != nil {
		return nil, err
	}
	if unique {
		holder = Unique(holder, f.def.key)
	}
	filter, err := f.filter(l, consumed, q)
	if err != nil {
		return nil, err
	}
	if err := l.CheckFullyConsumed(f.def.hidden...); err != nil {
		return nil, err
	}
	return Run(filter, holder, paging, f.def.lookupLimit)
}

// readPaging consumes the reserved paging dimensions. Single-item queries
// default to count 2, enough to detect ambiguity.
func readPaging(l *Locator, single bool) (Paging, bool, error) {
	var p Paging
	start, err := reservedInt(l, DimStart)
	if err != nil {
		return p, false, err
	}
	if start != nil {
		p.Start = *start
	}
	if p.Count, err = reservedInt(l, DimCount); err != nil {
		return p, false, err
	}
	if p.LookupLimit, err = reservedInt(l, DimLookupLimit); err != nil {
		return p, false, err
	}
	if single && p.Count == nil {
		two := 2
		p.Count = &two
	}

	raw, ok, err := l.Value(DimUnique)
	if err != nil || !ok {
		return p, false, err
	}
	unique, err := ParseBool(raw)
	if err != nil {
		return p, false, invalidValue(DimUnique, raw, err)
	}
	return p, unique, nil
}

func reservedInt(l *Locator, name string) (*int, error) {
	raw, ok, err := l.Value(name)
	if err != nil || !ok {
		return nil, err
	}
	n, err := ParseNonNegativeInt(raw)
	if err != nil {
		return nil, invalidValue(name, raw, err)
	}
	return &n, nil
}

// findSingle runs the single-item shortcut. ok is false when the rule does
// not apply and normal resolution should continue.
func (f *Finder[ITEM]) findSingle(l *Locator, p Paging, q *query) (res *PagedResult[ITEM], ok bool, err error) {
	snap := l.snapshot()
	stop := l.track()
	item, found, err := f.def.findSingle(l)
	consumed := stop()
	if errors.Is(err, ErrSkipRule) {
		l.restore(snap)
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	q.stats.Source = "single item"

	filter, err := f.filter(l, consumed, q)
	if err != nil {
		return nil, true, err
	}
	// Other dimensions may stay unread on this path, but a non-zero start
	// would page past the only candidate.
	if p.Start != 0 {
		return nil, true, unusedDimensions([]string{DimStart})
	}
	var items []ITEM
	if found {
		items = []ITEM{item}
	}
	res, err = Run(filter, HolderOf(items), p, f.def.lookupLimit)
	if err != nil {
		return nil, true, err
	}
	q.filteredOut = found && len(res.Items) == 0 && (p.Count == nil || *p.Count > 0)
	return res, true, nil
}

// source picks the first candidate source whose condition matches and whose
// resolver does not skip. It returns the dimensions the source consumed.
func (f *Finder[ITEM]) source(l *Locator, q *query) (ItemHolder[ITEM], []string, error) {
	if l.Has(DimItem) {
		stop := l.track()
		holder, err := f.itemUnion(l)
		consumed := stop()
		q.stats.Source = DimItem
		return holder, consumed, err
	}
	for _, rule := range f.def.sources {
		if !rule.cond.Matches(l) {
			continue
		}
		snap := l.snapshot()
		stop := l.track()
		holder, err := rule.resolve(l)
		consumed := stop()
		if errors.Is(err, ErrSkipRule) {
			l.restore(snap)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		q.stats.Source = rule.name
		return holder, consumed, nil
	}
	return nil, nil, configErrorf("%s: no candidate source for locator %q", f.def.entity, l.Text())
}

// itemUnion resolves every item sub-locator and merges the results.
func (f *Finder[ITEM]) itemUnion(l *Locator) (ItemHolder[ITEM], error) {
	set := NewItemSet[ITEM](nil, f.def.key)
	for _, sub := range l.Values(DimItem) {
		res, err := f.Items(sub)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", sub, err)
		}
		for _, item := range res.Items {
			set.Add(item)
		}
	}
	return HolderOf(set.Items()), nil
}

// filter AND-combines every matching filter rule. A rule that consumes
// exactly the dimensions the candidate source consumed is skipped: the
// source already guarantees it.
func (f *Finder[ITEM]) filter(l *Locator, sourceConsumed []string, q *query) (ItemFilter[ITEM], error) {
	var filters []ItemFilter[ITEM]
	for _, rule := range f.def.filters {
		if !rule.cond.Matches(l) {
			continue
		}
		snap := l.snapshot()
		stop := l.track()
		flt, err := rule.build(l)
		consumed := stop()
		if errors.Is(err, ErrSkipRule) {
			l.restore(snap)
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(sourceConsumed) > 0 && slices.Equal(consumed, sourceConsumed) {
			q.stats.FiltersSkipped++
			continue
		}
		filters = append(filters, flt)
		q.stats.FiltersApplied++
	}
	return And(filters...), nil
}
