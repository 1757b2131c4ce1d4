package finder

// ItemFilter decides which candidates make it into a result.
//
// ShouldStop lets a filter over an ordered candidate stream end the scan
// early: once it returns true for an item, no later item can match.
type ItemFilter[T any] interface {
	IsIncluded(item T) bool
	ShouldStop(item T) bool
}

// FilterFunc adapts a predicate to ItemFilter. It never stops a scan.
type FilterFunc[T any] func(item T) bool

func (f FilterFunc[T]) IsIncluded(item T) bool { return f(item) }
func (f FilterFunc[T]) ShouldStop(T) bool      { return false }

// StopFilter is an ItemFilter built from two optional predicates. A nil
// Include accepts everything; a nil Stop never stops.
type StopFilter[T any] struct {
	Include func(T) bool
	Stop    func(T) bool
}

func (f StopFilter[T]) IsIncluded(item T) bool {
	return f.Include == nil || f.Include(item)
}

func (f StopFilter[T]) ShouldStop(item T) bool {
	return f.Stop != nil && f.Stop(item)
}

// All returns a filter that includes every item.
func All[T any]() ItemFilter[T] {
	return StopFilter[T]{}
}

// And includes an item only if every filter includes it and stops as soon as
// any filter stops. And with no filters includes everything.
func And[T any](filters ...ItemFilter[T]) ItemFilter[T] {
	switch len(filters) {
	case 0:
		return All[T]()
	case 1:
		return filters[0]
	}
	return andFilter[T](filters)
}

type andFilter[T any] []ItemFilter[T]

func (a andFilter[T]) IsIncluded(item T) bool {
	for _, f := range a {
		if !f.IsIncluded(item) {
			return false
		}
	}
	return true
}

func (a andFilter[T]) ShouldStop(item T) bool {
	for _, f := range a {
		if f.ShouldStop(item) {
			return true
		}
	}
	return false
}

// Or includes an item if any filter includes it and stops only when every
// filter stops. Or with no filters includes nothing.
func Or[T any](filters ...ItemFilter[T]) ItemFilter[T] {
	if len(filters) == 1 {
		return filters[0]
	}
	return orFilter[T](filters)
}

type orFilter[T any] []ItemFilter[T]

func (o orFilter[T]) IsIncluded(item T) bool {
	for _, f := range o {
		if f.IsIncluded(item) {
			return true
		}
	}
	return false
}

func (o orFilter[T]) ShouldStop(item T) bool {
	if len(o) == 0 {
		return false
	}
	for _, f := range o {
		if !f.ShouldStop(item) {
			return false
		}
	}
	return true
}
