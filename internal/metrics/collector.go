package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cooking-ops/internal/shared"
)

// Collector exposes LLM request metrics to Prometheus.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

// NewCollector registers the collectors with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cooking_ops",
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "Total number of LLM requests by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cooking_ops",
				Subsystem: "llm",
				Name:      "latency_seconds",
				Help:      "LLM request latency",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"agent"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cooking_ops",
				Subsystem: "llm",
				Name:      "tokens_total",
				Help:      "Tokens consumed by agent and kind",
			},
			[]string{"agent", "kind"},
		),
	}
}

// Observe records one agent execution.
func (c *Collector) Observe(meta shared.AgentMeta, outcome string) {
	c.requests.WithLabelValues(meta.AgentName, outcome).Inc()
	if meta.Latency > 0 {
		c.latency.WithLabelValues(meta.AgentName).Observe(meta.Latency.Seconds())
	}
	c.tokens.WithLabelValues(meta.AgentName, "prompt").Add(float64(meta.Usage.PromptTokens))
	c.tokens.WithLabelValues(meta.AgentName, "completion").Add(float64(meta.Usage.CompletionTokens))
}
