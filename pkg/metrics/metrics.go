package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "toolchat"

// Model call labels
const (
	CallFirst  = "first"
	CallSecond = "second"
)

// ToolUnknown labels executions of tool names that are not registered, so
// names invented by the model do not become label values.
const ToolUnknown = "unknown"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors recorded while processing messages.
type Metrics struct {
	ModelCallDuration     *prometheus.HistogramVec
	ToolExecutionDuration *prometheus.HistogramVec
	MessagesProcessed     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Duration of calls to the language model.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"call", "outcome"}),
		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_execution_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "outcome"}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Inbound chat messages by result code.",
		}, []string{"code"}),
	}

	if reg != nil {
		reg.MustRegister(m.ModelCallDuration, m.ToolExecutionDuration, m.MessagesProcessed)
	}
	return m
}

// ObserveModelCall records a model call duration.
func (m *Metrics) ObserveModelCall(call string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ModelCallDuration.WithLabelValues(call, outcome(err)).Observe(d.Seconds())
}

// ObserveToolExecution records a tool execution duration.
func (m *Metrics) ObserveToolExecution(tool string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ToolExecutionDuration.WithLabelValues(tool, outcome(err)).Observe(d.Seconds())
}

// CountMessage counts a processed message by its error code, or "OK".
func (m *Metrics) CountMessage(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.MessagesProcessed.WithLabelValues(code).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
