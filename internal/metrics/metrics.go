// Package metrics exports finder query stats as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	finder "github.com/jward/finder"
)

const namespace = "finder"

// none labels successful queries and queries that failed before a source
// was chosen.
const none = "none"

// Observer implements finder.Observer on top of Prometheus collectors.
type Observer struct {
	queries      *prometheus.CounterVec
	limitReached *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	scanned      *prometheus.HistogramVec
	matched      *prometheus.HistogramVec
}

var _ finder.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries resolved, by entity, source rule and error kind.",
		}, []string{"entity", "source", "error_kind"}),
		limitReached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_limit_reached_total",
			Help:      "Queries whose scan stopped at the lookup limit.",
		}, []string{"entity"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Time spent resolving a query.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"entity"}),
		scanned: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_scanned_items",
			Help:      "Candidates pulled from the source per query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"entity"}),
		matched: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_matched_items",
			Help:      "Items returned per query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"entity"}),
	}
	for _, c := range []prometheus.Collector{o.queries, o.limitReached, o.duration, o.scanned, o.matched} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return o, nil
}

// ObserveQuery records one query.
func (o *Observer) ObserveQuery(s finder.QueryStats) {
	source := s.Source
	if source == "" {
		source = none
	}
	errKind := string(s.ErrorKind)
	if errKind == "" {
		errKind = none
	}
	o.queries.WithLabelValues(s.Entity, source, errKind).Inc()
	o.duration.WithLabelValues(s.Entity).Observe(s.Duration.Seconds())
	if s.ErrorKind != "" {
		return
	}
	o.scanned.WithLabelValues(s.Entity).Observe(float64(s.Scanned))
	o.matched.WithLabelValues(s.Entity).Observe(float64(s.Matched))
	if s.LookupLimitReached {
		o.limitReached.WithLabelValues(s.Entity).Inc()
	}
}

// WriteText writes every metric gathered from g in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
