package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics tracks gateway delivery ingestion outcomes.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_received",
		Help: "Gateway webhook deliveries received.",
	}, []string{"gateway"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate",
		Help: "Gateway webhook deliveries rejected as duplicates.",
	}, []string{"gateway"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed",
		Help: "Gateway webhook deliveries applied to a sale.",
	}, []string{"gateway"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failed",
		Help: "Gateway webhook deliveries that failed processing.",
	}, []string{"gateway"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_ingest_duration_seconds",
		Help:    "Duration of webhook ingestion in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(received, duplicate, processed, failed, duration)
	return &WebhookMetrics{
		received:  received,
		duplicate: duplicate,
		processed: processed,
		failed:    failed,
		duration:  duration,
	}
}

// IncReceived counts an incoming delivery before any processing.
func (w *WebhookMetrics) IncReceived(gateway string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncDuplicate counts a delivery short-circuited by the idempotency gate.
func (w *WebhookMetrics) IncDuplicate(gateway string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncProcessed counts a delivery fully applied.
func (w *WebhookMetrics) IncProcessed(gateway string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncFailed counts a delivery that errored and was left for retry.
func (w *WebhookMetrics) IncFailed(gateway string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// ObserveIngestDuration records how long ingestion took.
func (w *WebhookMetrics) ObserveIngestDuration(gateway string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}
