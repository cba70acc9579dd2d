// Package metrics exposes prometheus counters and histograms for query
// execution and mutation activity, registered against a caller-supplied
// registry so tests and the CLI's `--metrics-addr` flag can each wire
// their own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the prometheus collectors a query engine reports
// through. The zero value is not usable; construct with New.
type Recorder struct {
	queriesTotal     *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	mutationsTotal   *prometheus.CounterVec
	parseErrorsTotal prometheus.Counter
}

// New creates a Recorder and registers its collectors against reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyphersql",
			Name:      "queries_total",
			Help:      "Total number of queries executed, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cyphersql",
			Name:      "query_duration_seconds",
			Help:      "Query execution latency in seconds, by clause pipeline shape.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"shape"}),
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cyphersql",
			Name:      "mutations_total",
			Help:      "Total graph mutations applied, by kind.",
		}, []string{"kind"}),
		parseErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cyphersql",
			Name:      "parse_errors_total",
			Help:      "Total queries that failed to lex or parse.",
		}),
	}

	reg.MustRegister(r.queriesTotal, r.queryDuration, r.mutationsTotal, r.parseErrorsTotal)

	return r
}

// ObserveQuery records one query's outcome and wall-clock duration.
// shape distinguishes read pipelines from mutation pipelines so the two
// are not averaged together in one histogram ("read", "create",
// "merge", "delete", "set").
func (r *Recorder) ObserveQuery(shape string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	r.queriesTotal.WithLabelValues(outcome).Inc()
	r.queryDuration.WithLabelValues(shape).Observe(seconds)
}

// ObserveParseError increments the parse-failure counter. Called before
// ObserveQuery has an AST to derive a shape label from.
func (r *Recorder) ObserveParseError() {
	r.parseErrorsTotal.Inc()
}

// ObserveMutation records one mutation summary's counts against the
// mutation kind that produced them (spec §6's Summary fields).
func (r *Recorder) ObserveMutation(kind string, count int) {
	if count == 0 {
		return
	}

	r.mutationsTotal.WithLabelValues(kind).Add(float64(count))
}
