package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AssistantMetrics records the model/tool loop behaviour per inbound message.
type AssistantMetrics struct {
	rounds    prometheus.Histogram
	toolCalls *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
}

// NewAssistantMetrics registers the assistant metrics on the provided registerer.
func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	if reg == nil {
		return &AssistantMetrics{}
	}
	rounds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "assistant_rounds",
		Help:      "Model rounds needed to answer one inbound message.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6},
	})
	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assistant_tool_calls_total",
		Help:      "Tool calls executed by the assistant, by tool and result.",
	}, []string{"tool", "result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assistant_replies_total",
		Help:      "Assistant replies by outcome (answered, round_cap, timeout, error).",
	}, []string{"outcome"})
	reg.MustRegister(rounds, toolCalls, outcomes)
	return &AssistantMetrics{rounds: rounds, toolCalls: toolCalls, outcomes: outcomes}
}

// ObserveRounds records how many model calls one message needed.
func (m *AssistantMetrics) ObserveRounds(rounds int) {
	if m == nil || m.rounds == nil {
		return
	}
	m.rounds.Observe(float64(rounds))
}

// IncToolCall counts one executed tool call.
func (m *AssistantMetrics) IncToolCall(tool string, success bool) {
	if m == nil || m.toolCalls == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.toolCalls.WithLabelValues(normalizeLabel(tool), result).Inc()
}

// IncOutcome counts how a message loop ended.
func (m *AssistantMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
