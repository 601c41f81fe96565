// Package metrics exposes decision outcomes as Prometheus series.  The
// collector implements monitor.Observer, so metrics ride the same injected
// hook integrations use, with no wiring inside the engine itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Baalavignesh/Aegis/store"
)

// Observer counts terminal decisions per (agent, action, outcome).
type Observer struct {
	decisions *prometheus.CounterVec
	denials   *prometheus.CounterVec
}

// NewObserver creates a collector registered against reg.  A nil registerer
// falls back to a private registry so the observer stays usable in tests
// without polluting the default registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Observer{
		decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_decisions_total",
			Help: "Total number of terminal authorization decisions.",
		}, []string{"agent", "action", "outcome"}),

		denials: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_denials_total",
			Help: "Total number of denials by kind.",
		}, []string{"kind"}), // kinds: killed, blocked, denied, timeout
	}
}

// OnDecision implements monitor.Observer.  It never substitutes errors.
func (o *Observer) OnDecision(agentName, action string, outcome store.Outcome) error {
	o.decisions.WithLabelValues(agentName, action, string(outcome)).Inc()
	switch outcome {
	case store.OutcomeKilled:
		o.denials.WithLabelValues("killed").Inc()
	case store.OutcomeBlocked:
		o.denials.WithLabelValues("blocked").Inc()
	case store.OutcomeDenied:
		o.denials.WithLabelValues("denied").Inc()
	case store.OutcomeTimedOut:
		o.denials.WithLabelValues("timeout").Inc()
	}
	return nil
}
