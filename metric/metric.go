// Package metric provides Prometheus-based metrics for the resolver. All
// record methods are safe on a nil receiver so metrics stay optional in
// tests and embedded use.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all resolver-level metrics.
type Metrics struct {
	AnnouncementsTotal  *prometheus.CounterVec
	MatchesTotal        *prometheus.CounterVec
	ApplicationsTotal   *prometheus.CounterVec
	SupersessionsTotal  prometheus.Counter
	FixedPointRounds    prometheus.Histogram
	TickDuration        prometheus.Histogram
	DocumentsPublished  *prometheus.CounterVec
	SRGNodes            prometheus.Gauge
	SRGEdges            prometheus.Gauge
	RegisteredSubgraphs prometheus.Gauge
}

// New creates a Metrics instance with all resolver metrics.
func New() *Metrics {
	return &Metrics{
		AnnouncementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "srgresolver",
				Subsystem: "server",
				Name:      "announcements_total",
				Help:      "Total number of announcements processed, by type",
			},
			[]string{"type"},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "srgresolver",
				Subsystem: "matcher",
				Name:      "matches_total",
				Help:      "Total number of complete matches enumerated, by pattern",
			},
			[]string{"pattern"},
		),
		ApplicationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "srgresolver",
				Subsystem: "resolver",
				Name:      "applications_total",
				Help:      "Total number of instantiated patterns, by pattern",
			},
			[]string{"pattern"},
		),
		SupersessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "srgresolver",
				Subsystem: "resolver",
				Name:      "supersessions_total",
				Help:      "Total number of subgraphs deleted by supersession",
			},
		),
		FixedPointRounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "srgresolver",
				Subsystem: "server",
				Name:      "fixed_point_rounds",
				Help:      "Pattern application rounds per resolver tick",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "srgresolver",
				Subsystem: "server",
				Name:      "tick_duration_seconds",
				Help:      "Duration of one response generation tick",
				Buckets:   prometheus.DefBuckets,
			},
		),
		DocumentsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "srgresolver",
				Subsystem: "server",
				Name:      "documents_published_total",
				Help:      "Total number of per-client documents emitted",
			},
			[]string{"client"},
		),
		SRGNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "srgresolver",
				Subsystem: "srg",
				Name:      "nodes",
				Help:      "Current number of SRG nodes",
			},
		),
		SRGEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "srgresolver",
				Subsystem: "srg",
				Name:      "edges",
				Help:      "Current number of SRG edges",
			},
		),
		RegisteredSubgraphs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "srgresolver",
				Subsystem: "srg",
				Name:      "registered_subgraphs",
				Help:      "Current number of repository subgraphs",
			},
		),
	}
}

// Register registers all collectors with a registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.AnnouncementsTotal, m.MatchesTotal, m.ApplicationsTotal,
		m.SupersessionsTotal, m.FixedPointRounds, m.TickDuration,
		m.DocumentsPublished, m.SRGNodes, m.SRGEdges, m.RegisteredSubgraphs,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// CountAnnouncement records one processed announcement.
func (m *Metrics) CountAnnouncement(kind string) {
	if m == nil {
		return
	}
	m.AnnouncementsTotal.WithLabelValues(kind).Inc()
}

// ObserveMatches records the number of matches enumerated for a pattern.
func (m *Metrics) ObserveMatches(pattern string, n int) {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues(pattern).Add(float64(n))
}

// CountApplications records instantiated patterns.
func (m *Metrics) CountApplications(pattern string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ApplicationsTotal.WithLabelValues(pattern).Add(float64(n))
}

// CountSupersession records one supersession delete.
func (m *Metrics) CountSupersession() {
	if m == nil {
		return
	}
	m.SupersessionsTotal.Inc()
}

// ObserveFixedPoint records the rounds of one tick.
func (m *Metrics) ObserveFixedPoint(rounds int) {
	if m == nil {
		return
	}
	m.FixedPointRounds.Observe(float64(rounds))
}

// ObserveTick records the duration of one tick in seconds.
func (m *Metrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(seconds)
}

// CountDocument records one emitted per-client document.
func (m *Metrics) CountDocument(client string) {
	if m == nil {
		return
	}
	m.DocumentsPublished.WithLabelValues(client).Inc()
}

// SetSRGSize updates the SRG gauges.
func (m *Metrics) SetSRGSize(nodes, edges, subgraphs int) {
	if m == nil {
		return
	}
	m.SRGNodes.Set(float64(nodes))
	m.SRGEdges.Set(float64(edges))
	m.RegisteredSubgraphs.Set(float64(subgraphs))
}
