package finder

// Paging windows a query result and caps how many candidates are scanned.
type Paging struct {
	// Start skips this many matching items.
	Start int
	// Count limits the number of returned items. nil means unbounded.
	Count *int
	// LookupLimit caps scanned candidates. nil means the definition default;
	// zero means unbounded.
	LookupLimit *int
}

// PagedResult is one page of a query plus diagnostics about the scan.
type PagedResult[T any] struct {
	Items []T
	Start int
	Count *int
	// Scanned is the number of candidates pulled from the source.
	Scanned int
	// LookupLimit is the effective scan cap; zero means unbounded.
	LookupLimit int
	// LookupLimitReached is set when the scan stopped at LookupLimit before
	// the source was exhausted. It is a soft signal, not an error.
	LookupLimitReached bool
	// LastScanned is the last candidate pulled from the source, if any.
	LastScanned *T
}

// effectiveLookupLimit resolves the scan cap: an explicit limit wins,
// otherwise the default raised to at least count. Zero means unbounded.
func effectiveLookupLimit(p Paging, defaultLimit int) (limit int, bounded bool) {
	if p.LookupLimit != nil {
		if *p.LookupLimit <= 0 {
			return 0, false
		}
		return *p.LookupLimit, true
	}
	if defaultLimit <= 0 {
		return 0, false
	}
	limit = defaultLimit
	if p.Count != nil && *p.Count > limit {
		limit = *p.Count
	}
	return limit, true
}

// Run scans holder through filter and collects the requested window.
//
// For every candidate it first checks the lookup limit, then ShouldStop, then
// IsIncluded. The first Start matches are skipped and collection ends after
// Count matches.
func Run[T any](filter ItemFilter[T], holder ItemHolder[T], p Paging, defaultLookupLimit int) (*PagedResult[T], error) {
	limit, bounded := effectiveLookupLimit(p, defaultLookupLimit)
	res := &PagedResult[T]{Start: p.Start, Count: p.Count}
	if bounded {
		res.LookupLimit = limit
	}
	if p.Count != nil && *p.Count == 0 {
		return res, nil
	}

	matched := 0
	err := holder.Process(func(item T) bool {
		if bounded && res.Scanned >= limit {
			res.LookupLimitReached = true
			return false
		}
		res.Scanned++
		last := item
		res.LastScanned = &last

		if filter.ShouldStop(item) {
			return false
		}
		if !filter.IsIncluded(item) {
			return true
		}
		matched++
		if matched <= p.Start {
			return true
		}
		res.Items = append(res.Items, item)
		return p.Count == nil || len(res.Items) < *p.Count
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
