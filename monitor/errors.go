package monitor

import "fmt"

// KillSwitchError is returned when the agent is paused.  The wrapped function
// is never invoked and no approval request is created, regardless of the
// action's policy rule.
type KillSwitchError struct {
	AgentName string
	Action    string
}

func (e *KillSwitchError) Error() string {
	return fmt.Sprintf("monitor: agent %q is paused, action %q suspended by kill-switch", e.AgentName, e.Action)
}

// PolicyBlockedError is returned when the action carries a Block rule.  The
// wrapped function is never invoked and no approval request is created.
type PolicyBlockedError struct {
	AgentName string
	Action    string
}

func (e *PolicyBlockedError) Error() string {
	return fmt.Sprintf("monitor: action %q is blocked by policy for agent %q", e.Action, e.AgentName)
}
