// Package identity resolves which agent is behind a monitored call.  Two
// binding modes exist: an explicit agent name supplied at wrap time, and an
// ambient binding carried by the context for the duration of a call tree.
// The ambient value is context-scoped per goroutine, so concurrent agents
// never observe each other's identity and the previous binding is restored
// for free when the scoped context goes out of use.
package identity

import (
	"context"
	"errors"
)

// ErrNoAgent indicates that neither an explicit nor an ambient agent identity
// was available.  An unresolvable identity must never silently bypass
// authorization, so callers fail fast on it.
var ErrNoAgent = errors.New("identity: no agent bound to the call or its context")

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithAgent returns a context carrying name as the ambient agent for the
// call tree rooted at ctx.
func WithAgent(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, name)
}

// FromContext extracts the ambient agent name, or "" when none is bound.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey).(string); ok {
		return v
	}
	return ""
}

// Resolve returns the effective agent identity for a call: the explicit
// binding wins, otherwise the ambient value, otherwise ErrNoAgent.
func Resolve(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if ambient := FromContext(ctx); ambient != "" {
		return ambient, nil
	}
	return "", ErrNoAgent
}
