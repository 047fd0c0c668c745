package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	IdentitiesCreated    prometheus.Counter
	IdentitiesTerminated prometheus.Counter
	HREvents             *prometheus.CounterVec
	EntitlementChanges   *prometheus.CounterVec

	RequestsSubmitted prometheus.Counter
	RequestsDecided   *prometheus.CounterVec
	DecideLatency     prometheus.Histogram

	AuditRecords        prometheus.Counter
	AuditRelayPublished prometheus.Counter
	AuditRelayFailures  prometheus.Counter

	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "governa_identities_created_total",
			Help: "Total number of identities created from HR events",
		}),
		IdentitiesTerminated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "governa_identities_terminated_total",
			Help: "Total number of identities terminated",
		}),
		HREvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "governa_hr_events_total",
			Help: "Total number of HR lifecycle events processed, by type and outcome",
		}, []string{"type", "outcome"}),
		EntitlementChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "governa_entitlement_changes_total",
			Help: "Total number of entitlement grants and revocations",
		}, []string{"op"}),
		RequestsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "governa_access_requests_submitted_total",
			Help: "Total number of access requests submitted",
		}),
		RequestsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "governa_access_requests_decided_total",
			Help: "Total number of access request decisions, by outcome",
		}, []string{"decision"}),
		DecideLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "governa_access_request_decide_seconds",
			Help:    "Latency of access request decisions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		AuditRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "governa_audit_records_total",
			Help: "Total number of audit records appended",
		}),
		AuditRelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "governa_audit_relay_published_total",
			Help: "Total number of audit records published to Kafka by the relay",
		}),
		AuditRelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "governa_audit_relay_failures_total",
			Help: "Total number of audit relay publish failures",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "governa_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveDecideLatency records the time a workflow decision took.
func (m *Metrics) ObserveDecideLatency(seconds float64) {
	if m == nil {
		return
	}
	m.DecideLatency.Observe(seconds)
}

// ObserveEndpointLatency records handler latency for one endpoint label.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
}
