package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "snowinfo"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Client address resolution.
	IPResolutions       *prometheus.CounterVec // labels: source
	ClientIPExtractions *prometheus.CounterVec // labels: source, result={success,failure}
	ClientIPSecurity    *prometheus.CounterVec // labels: event

	HTTPRequests *prometheus.CounterVec // labels: method, code

	ReportsCreated prometheus.Counter

	// Kafka relay.
	OutboxPending      prometheus.Gauge
	ReportsPublished   prometheus.Counter
	PublishErrors      prometheus.Counter
	RelayRunning       prometheus.Gauge
	RelayBatchSize     prometheus.Histogram
	RelayBatchDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IPResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_ip_resolutions_total",
			Help:      "Client address resolutions by winning source.",
		}, []string{"source"}),
		ClientIPExtractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clientip_extractions_total",
			Help:      "Trusted-proxy extraction attempts by source and result.",
		}, []string{"source", "result"}),
		ClientIPSecurity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clientip_security_events_total",
			Help:      "Security events observed during trusted-proxy extraction.",
		}, []string{"event"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by method and status code.",
		}, []string{"method", "code"}),
		ReportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Snow reports accepted and stored.",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Stored reports not yet published to Kafka.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Snow reports written to the Kafka topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka batch writes.",
		}),
		RelayRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_running",
			Help:      "1 when the Kafka relay is active, 0 when shut down.",
		}),
		RelayBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_batch_size",
			Help:      "Number of reports per relayed batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		RelayBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_batch_duration_seconds",
			Help:      "Duration of a complete read-publish-acknowledge cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.IPResolutions,
		m.ClientIPExtractions,
		m.ClientIPSecurity,
		m.HTTPRequests,
		m.ReportsCreated,
		m.OutboxPending,
		m.ReportsPublished,
		m.PublishErrors,
		m.RelayRunning,
		m.RelayBatchSize,
		m.RelayBatchDuration,
	}
}

// RecordResolution counts the winning client address source.
func (m *Metrics) RecordResolution(source string) {
	m.IPResolutions.WithLabelValues(source).Inc()
}

// RecordExtractionSuccess implements clientip.Metrics.
func (m *Metrics) RecordExtractionSuccess(source string) {
	m.ClientIPExtractions.WithLabelValues(source, "success").Inc()
}

// RecordExtractionFailure implements clientip.Metrics.
func (m *Metrics) RecordExtractionFailure(source string) {
	m.ClientIPExtractions.WithLabelValues(source, "failure").Inc()
}

// RecordSecurityEvent implements clientip.Metrics.
func (m *Metrics) RecordSecurityEvent(event string) {
	m.ClientIPSecurity.WithLabelValues(event).Inc()
}

// RecordRequest counts a served HTTP request.
func (m *Metrics) RecordRequest(method string, status int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
