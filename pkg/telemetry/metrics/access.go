package metrics

import "github.com/prometheus/client_golang/prometheus"

// AccessMetrics tracks authorization outcomes and the audit mirror.
type AccessMetrics struct {
	decisions    *prometheus.CounterVec
	auditDropped prometheus.Counter
}

// NewAccessMetrics creates and registers access metrics with the provided registry.
func NewAccessMetrics(namespace string, registry *prometheus.Registry) *AccessMetrics {
	am := &AccessMetrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_decisions_total",
				Help:      "Authorization decisions by caller class and outcome",
			},
			[]string{"class", "decision"},
		),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Access records dropped because the audit queue was full",
		}),
	}

	registry.MustRegister(am.decisions, am.auditDropped)

	return am
}

// RecordDecision increments the decision counter.
func (am *AccessMetrics) RecordDecision(class string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	am.decisions.WithLabelValues(class, decision).Inc()
}
