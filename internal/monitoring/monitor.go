package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chefia/internal/menu"
)

// Monitor collects the service metrics on its own registry
type Monitor struct {
	registry *prometheus.Registry

	pipelineRuns      *prometheus.CounterVec
	unmatchedProducts *prometheus.CounterVec
	droppedCostRows   prometheus.Counter
	ingestFailures    *prometheus.CounterVec
	menuItems         *prometheus.HistogramVec
	llmRequests       *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
	startTime         time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefia_pipeline_runs_total",
				Help: "Menu analyses computed, by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		unmatchedProducts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefia_unmatched_products_total",
				Help: "Products excluded by the sales/cost merge",
			},
			[]string{"side"},
		),
		droppedCostRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chefia_dropped_cost_rows_total",
			Help: "Cost rows dropped for an unparseable value",
		}),
		ingestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefia_ingest_failures_total",
				Help: "Uploaded files that could not be read",
			},
			[]string{"kind"},
		),
		menuItems: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chefia_menu_items",
				Help:    "Classified items per analysis",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"source"},
		),
		llmRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefia_llm_requests_total",
				Help: "LLM requests by provider, kind and status",
			},
			[]string{"provider", "kind", "status"},
		),
		llmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chefia_llm_request_duration_seconds",
				Help:    "Time taken by LLM requests",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"provider", "kind"},
		),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.pipelineRuns,
		m.unmatchedProducts,
		m.droppedCostRows,
		m.ingestFailures,
		m.menuItems,
		m.llmRequests,
		m.llmDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chefia_uptime_seconds",
			Help: "Seconds since the process started",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAnalysis records one computed analysis. source is "upload",
// "entries" or "cli".
func (m *Monitor) RecordAnalysis(source string, a *menu.Analysis) {
	m.pipelineRuns.WithLabelValues(source, string(a.Outcome)).Inc()
	m.menuItems.WithLabelValues(source).Observe(float64(len(a.Items)))
	if n := len(a.Report.SalesOnly); n > 0 {
		m.unmatchedProducts.WithLabelValues("sales").Add(float64(n))
	}
	if n := len(a.Report.CostOnly); n > 0 {
		m.unmatchedProducts.WithLabelValues("cost").Add(float64(n))
	}
	if n := len(a.Report.ZeroPopularity); n > 0 {
		m.unmatchedProducts.WithLabelValues("zero_popularity").Add(float64(n))
	}
}

// RecordDroppedCostRows counts cost rows the normalizer discarded
func (m *Monitor) RecordDroppedCostRows(n int) {
	if n > 0 {
		m.droppedCostRows.Add(float64(n))
	}
}

// RecordIngestFailure counts an unreadable upload of the given kind
func (m *Monitor) RecordIngestFailure(kind string) {
	m.ingestFailures.WithLabelValues(kind).Inc()
}

// ObserveLLM records an LLM request that started at start
func (m *Monitor) ObserveLLM(provider, kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmRequests.WithLabelValues(provider, kind, status).Inc()
	m.llmDuration.WithLabelValues(provider, kind).Observe(time.Since(start).Seconds())
}
