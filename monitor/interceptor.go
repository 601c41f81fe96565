// Package monitor wraps arbitrary callables with the authorization engine:
// every invocation resolves the agent identity, runs a fresh policy decision,
// routes Review and undeclared actions through the human-approval workflow
// and appends an audit entry for each terminal outcome before any error
// reaches the caller.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Baalavignesh/Aegis/approval"
	"github.com/Baalavignesh/Aegis/decision"
	"github.com/Baalavignesh/Aegis/identity"
	"github.com/Baalavignesh/Aegis/internal/clock"
	"github.com/Baalavignesh/Aegis/internal/idgen"
	"github.com/Baalavignesh/Aegis/store"
	"github.com/Baalavignesh/Aegis/tracing"
)

// Func is the shape of a wrapped callable.  The context passed in carries the
// ambient agent binding and any tracing span opened by the interceptor.
type Func func(ctx context.Context) (any, error)

// Interceptor drives the decision engine and approval workflow around
// monitored calls.
type Interceptor struct {
	store     store.Store
	engine    *decision.Engine
	approvals *approval.Workflow
	observer  Observer
	logger    *zap.Logger
}

// Option customises an Interceptor.
type Option func(*Interceptor)

// WithObserver injects the decision observer.
func WithObserver(observer Observer) Option {
	return func(i *Interceptor) {
		if observer != nil {
			i.observer = observer
		}
	}
}

// WithLogger sets the interceptor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Interceptor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an interceptor over the supplied store and approval workflow.
func New(s store.Store, approvals *approval.Workflow, options ...Option) *Interceptor {
	ret := &Interceptor{
		store:     s,
		engine:    decision.New(s),
		approvals: approvals,
		observer:  nopObserver{},
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Invoke authorizes and runs fn as action on behalf of agentName.  An empty
// agentName resolves the identity from the ambient context binding; an
// unresolvable identity fails fast with identity.ErrNoAgent before any store
// traffic.  fn runs only on a final allow; its own error propagates
// unmodified while the Allowed audit entry still records that authorization
// succeeded.
func (i *Interceptor) Invoke(ctx context.Context, agentName, action string, args any, fn Func) (result any, err error) {
	resolved, err := identity.Resolve(ctx, agentName)
	if err != nil {
		return nil, fmt.Errorf("monitor %q: %w", action, err)
	}

	ctx, span := tracing.StartSpan(ctx, "aegis.invoke")
	span.WithAttributes(map[string]string{
		"aegis.agent":       resolved,
		"aegis.action":      action,
		"aegis.correlation": idgen.New(),
	})
	defer func() { tracing.EndSpan(span, err) }()

	decided, err := i.engine.Decide(ctx, resolved, action)
	if err != nil {
		return nil, err
	}

	switch decided {
	case decision.Killed:
		i.audit(ctx, resolved, action, store.OutcomeKilled,
			fmt.Sprintf("agent %q is paused", resolved))
		return nil, i.deny(resolved, action, store.OutcomeKilled,
			&KillSwitchError{AgentName: resolved, Action: action})

	case decision.Blocked:
		i.audit(ctx, resolved, action, store.OutcomeBlocked,
			fmt.Sprintf("action %q is blocked by policy", action))
		return nil, i.deny(resolved, action, store.OutcomeBlocked,
			&PolicyBlockedError{AgentName: resolved, Action: action})

	case decision.NeedsApproval:
		if err := i.approvals.Await(ctx, resolved, action, snapshot(args)); err != nil {
			i.notifyDenial(resolved, action, err)
			return nil, err
		}
	}

	// Final allow, either direct or via approval.
	result, fnErr := fn(ctx)
	i.audit(ctx, resolved, action, store.OutcomeAllowed,
		fmt.Sprintf("action %q executed", action))
	if alt := i.observer.OnDecision(resolved, action, store.OutcomeAllowed); alt != nil {
		// Return value is ignored for allowed outcomes.
		i.logger.Debug("observer error ignored for allowed outcome", zap.Error(alt))
	}
	return result, fnErr
}

// deny notifies the observer of a Blocked/Killed outcome and lets it
// substitute the raised error.
func (i *Interceptor) deny(agentName, action string, outcome store.Outcome, fallback error) error {
	if alt := i.observer.OnDecision(agentName, action, outcome); alt != nil {
		return alt
	}
	return fallback
}

// notifyDenial maps an approval failure to its terminal outcome for the
// observer; substitution does not apply to approval results.
func (i *Interceptor) notifyDenial(agentName, action string, err error) {
	outcome := store.OutcomeDenied
	var timeout *approval.TimeoutError
	if errors.As(err, &timeout) {
		outcome = store.OutcomeTimedOut
	}
	var denied *approval.DeniedError
	if !errors.As(err, &denied) && outcome == store.OutcomeDenied {
		// Transport or cancellation failures are not decisions.
		return
	}
	_ = i.observer.OnDecision(agentName, action, outcome)
}

func (i *Interceptor) audit(ctx context.Context, agentName, action string, outcome store.Outcome, details string) {
	if _, err := i.store.AppendAudit(ctx, &store.AuditEntry{
		Timestamp: clock.Now(),
		AgentName: agentName,
		Action:    action,
		Outcome:   outcome,
		Details:   details,
	}); err != nil {
		i.logger.Warn("audit append failed",
			zap.String("agent", agentName),
			zap.String("action", action),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}

// snapshot serialises the call arguments for the approval request record.
func snapshot(args any) json.RawMessage {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// Wrap binds an agent, an action name and a typed function into a monitored
// callable, giving call sites decorator-like ergonomics.  An empty agentName
// defers identity resolution to the ambient context at call time.
func Wrap[I, O any](i *Interceptor, agentName, action string, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return func(ctx context.Context, in I) (O, error) {
		result, err := i.Invoke(ctx, agentName, action, in, func(ctx context.Context) (any, error) {
			return fn(ctx, in)
		})
		if err != nil {
			var zero O
			return zero, err
		}
		out, _ := result.(O)
		return out, nil
	}
}
