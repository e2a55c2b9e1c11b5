// Package llm – Prometheus instrumentation for provider calls.
//
// Labels are kept low-cardinality: provider family plus logical model id
// (bounded by the catalog) and a success/error outcome.
package llm

import "github.com/prometheus/client_golang/prometheus"

var (
	// llmCalls counts provider invocations by provider, model, and outcome.
	llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_calls_total",
			Help: "Total number of LLM provider invocations.",
		},
		[]string{"provider", "model", "outcome"},
	)

	// llmTokens counts prompt/completion tokens by provider and direction.
	// Counts mix provider-reported usage and length-based estimates.
	llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens consumed, by provider and direction.",
		},
		[]string{"provider", "direction"},
	)
)

func init() {
	prometheus.MustRegister(llmCalls, llmTokens)
}

func observeCall(p Provider, model string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	llmCalls.WithLabelValues(string(p), model, outcome).Inc()
}

func observeTokens(p Provider, in, out int) {
	llmTokens.WithLabelValues(string(p), "prompt").Add(float64(in))
	llmTokens.WithLabelValues(string(p), "completion").Add(float64(out))
}
