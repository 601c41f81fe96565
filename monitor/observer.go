package monitor

import "github.com/Baalavignesh/Aegis/store"

// Observer is notified of every terminal decision taken on a monitored call.
// For Blocked and Killed outcomes a non-nil returned error replaces the
// default error raised to the caller, letting integrations substitute their
// own error types without changing engine logic.  The return value is ignored
// for every other outcome.
//
// Observers are injected per interceptor rather than installed globally, so
// parallel engines and tests never share hidden state.
type Observer interface {
	OnDecision(agentName, action string, outcome store.Outcome) error
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(agentName, action string, outcome store.Outcome) error

func (f ObserverFunc) OnDecision(agentName, action string, outcome store.Outcome) error {
	return f(agentName, action, outcome)
}

type nopObserver struct{}

func (nopObserver) OnDecision(string, string, store.Outcome) error { return nil }
