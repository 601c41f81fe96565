package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Baalavignesh/Aegis/store"
)

func TestObserverCountsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	observer := NewObserver(reg)

	assert.NoError(t, observer.OnDecision("support", "lookup_order", store.OutcomeAllowed))
	assert.NoError(t, observer.OnDecision("support", "delete_order", store.OutcomeBlocked))
	assert.NoError(t, observer.OnDecision("support", "delete_order", store.OutcomeBlocked))
	assert.NoError(t, observer.OnDecision("support", "export_data", store.OutcomeTimedOut))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		observer.decisions.WithLabelValues("support", "lookup_order", "ALLOWED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		observer.decisions.WithLabelValues("support", "delete_order", "BLOCKED")))

	assert.Equal(t, 2.0, testutil.ToFloat64(observer.denials.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.denials.WithLabelValues("timeout")))
	// Allowed outcomes are not denials
	assert.Equal(t, 0.0, testutil.ToFloat64(observer.denials.WithLabelValues("killed")))
}

func TestObserverNeverSubstitutes(t *testing.T) {
	observer := NewObserver(nil)
	for _, outcome := range []store.Outcome{
		store.OutcomeAllowed, store.OutcomeBlocked, store.OutcomeKilled,
		store.OutcomeDenied, store.OutcomeTimedOut,
	} {
		assert.NoError(t, observer.OnDecision("support", "lookup_order", outcome))
	}
}
