// Package decision implements the authorization state machine mapping an
// (agent, action) pair to an outcome.  The engine is stateless and re-reads
// the store on every call, so kill-switch flips and policy edits propagate
// within one poll with no in-process cache to invalidate.
package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/Baalavignesh/Aegis/store"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Allowed permits the action immediately.
	Allowed Decision = iota
	// Blocked denies the action by policy rule.
	Blocked
	// Killed denies the action because the agent is paused; it preempts
	// every policy rule including Allow.
	Killed
	// NeedsApproval routes the action to the human-approval workflow, both
	// for rules explicitly marked Review and for actions with no rule at
	// all.
	NeedsApproval
)

// String returns the audit-log spelling of the decision.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "ALLOWED"
	case Blocked:
		return "BLOCKED"
	case Killed:
		return "KILLED"
	case NeedsApproval:
		return "NEEDS_APPROVAL"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Engine evaluates (agent, action) pairs against the live store state.
type Engine struct {
	store store.Store
}

// New creates an engine over the supplied store.
func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// Decide runs the authorization check, fresh on every call:
//  1. live agent status: Paused wins over everything, including Allow;
//  2. Block rule means Blocked;
//  3. Allow rule means Allowed;
//  4. Review rule or no rule at all means NeedsApproval.
//
// An unregistered agent is not paused, so its undeclared actions also funnel
// into NeedsApproval.  Store transport failures are returned as errors, never
// folded into a decision.
func (e *Engine) Decide(ctx context.Context, agentName, action string) (Decision, error) {
	status, err := e.store.GetAgentStatus(ctx, agentName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("decide %v.%v: agent status: %w", agentName, action, err)
	}
	if status == store.StatusPaused {
		return Killed, nil
	}

	rule, err := e.store.GetPolicy(ctx, agentName, action)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NeedsApproval, nil
		}
		return 0, fmt.Errorf("decide %v.%v: policy: %w", agentName, action, err)
	}
	switch rule {
	case store.RuleBlock:
		return Blocked, nil
	case store.RuleAllow:
		return Allowed, nil
	default:
		return NeedsApproval, nil
	}
}
