// Package metrics holds the Prometheus collectors for queries, reasoning
// dispatch and rebuilds.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ontoreason"

// Query outcomes.
const (
	QueryHit   = "hit"
	QueryEmpty = "empty"
	QueryError = "error"
)

// Metrics owns a registry and the collectors registered in it.
type Metrics struct {
	registry *prometheus.Registry

	queries        *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	strategies     *prometheus.CounterVec
	strategyTime   *prometheus.HistogramVec
	rebuildSeconds prometheus.Histogram
	graphNodes     prometheus.Gauge
	graphEdges     prometheus.Gauge
	facts          prometheus.Gauge
}

// New registers every collector in a fresh registry, plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Retrieval queries by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Retrieval query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_runs_total",
			Help:      "Reasoning strategy runs by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		strategyTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Reasoning strategy run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		rebuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Time to refit embeddings, communities and the dendrogram.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the knowledge graph at the last rebuild.",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the knowledge graph at the last rebuild.",
		}),
		facts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "triple_store_facts",
			Help:      "Facts in the triple store.",
		}),
	}
	m.registry.MustRegister(
		m.queries, m.queryDuration,
		m.strategies, m.strategyTime,
		m.rebuildSeconds, m.graphNodes, m.graphEdges, m.facts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery records one retrieval query.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// ObserveStrategy records one strategy run. It satisfies
// reasoning.Observer.
func (m *Metrics) ObserveStrategy(name, outcome string, d time.Duration) {
	m.strategies.WithLabelValues(name, outcome).Inc()
	if d > 0 {
		m.strategyTime.WithLabelValues(name).Observe(d.Seconds())
	}
}

// ObserveRebuild records a rebuild and the graph size it saw.
func (m *Metrics) ObserveRebuild(d time.Duration, nodes, edges int) {
	m.rebuildSeconds.Observe(d.Seconds())
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

// SetFacts records the triple store size.
func (m *Metrics) SetFacts(n int) {
	m.facts.Set(float64(n))
}
