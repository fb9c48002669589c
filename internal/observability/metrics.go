package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters emitted by the sync and webhook paths.
type Metrics struct {
	WebhookEvents    *prometheus.CounterVec
	SyncRecords      *prometheus.CounterVec
	CheckoutSessions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stripesync",
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		SyncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stripesync",
			Name:      "sync_records_total",
			Help:      "Remote records reconciled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CheckoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stripesync",
			Name:      "checkout_sessions_total",
			Help:      "Checkout and portal sessions by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.WebhookEvents, m.SyncRecords, m.CheckoutSessions)
	}
	return m
}

// NopMetrics returns unregistered counters, used by tests and CLI one-shots.
func NopMetrics() *Metrics {
	return NewMetrics(nil)
}

func (m *Metrics) Webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) Sync(kind, outcome string) {
	if m == nil {
		return
	}
	m.SyncRecords.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Session(kind, outcome string) {
	if m == nil {
		return
	}
	m.CheckoutSessions.WithLabelValues(kind, outcome).Inc()
}
