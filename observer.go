package finder

import "time"

// QueryStats summarizes one resolved query.
type QueryStats struct {
	Entity  string
	Locator string
	// Source names the rule that produced candidates: a dimension name, a
	// condition, "item" or "single item".
	Source             string
	FiltersApplied     int
	FiltersSkipped     int
	Scanned            int
	Matched            int
	LookupLimitReached bool
	Duration           time.Duration
	// ErrorKind is empty for successful queries.
	ErrorKind ErrorKind
}

// Observer receives stats for every query a Finder runs, including failed
// ones. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveQuery(stats QueryStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stats QueryStats)

func (f ObserverFunc) ObserveQuery(stats QueryStats) { f(stats) }

type nopObserver struct{}

func (nopObserver) ObserveQuery(QueryStats) {}
