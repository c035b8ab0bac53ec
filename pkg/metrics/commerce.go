package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics counts stock reservations, order transitions and webhook results.
type CommerceMetrics struct {
	reservations *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_reservations_total",
		Help:      "Stock reservation attempts by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Applied order status transitions by target status.",
	}, []string{"to"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_webhooks_total",
		Help:      "Payment webhook deliveries by result.",
	}, []string{"result"})
	reg.MustRegister(reservations, transitions, webhooks)
	return &CommerceMetrics{reservations: reservations, transitions: transitions, webhooks: webhooks}
}

// IncReservation counts one reservation attempt.
func (m *CommerceMetrics) IncReservation(reserved bool) {
	if m == nil || m.reservations == nil {
		return
	}
	result := "reserved"
	if !reserved {
		result = "insufficient"
	}
	m.reservations.WithLabelValues(result).Inc()
}

// IncTransition counts one applied order transition.
func (m *CommerceMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncWebhook counts one processed webhook delivery.
func (m *CommerceMetrics) IncWebhook(result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(result)).Inc()
}
