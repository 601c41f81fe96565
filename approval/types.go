package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/Baalavignesh/Aegis/store"
)

// Standard event topics published on the workflow queue.
const (
	TopicRequestCreated = "request.created"
	TopicRequestDecided = "request.decided"
)

// Event is the envelope published for every approval lifecycle change.
type Event struct {
	Topic   string          `json:"topic"`
	Request *store.Approval `json:"request"`
}

// ErrPending is the non-blocking-mode signal that a request is still awaiting
// a human decision.  It is not a terminal failure; callers retry later.
var ErrPending = errors.New("approval: decision pending, retry later")

// DeniedError reports that a human explicitly rejected the request.
type DeniedError struct {
	ID        int64
	AgentName string
	Action    string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("approval: action %q for agent %q denied (request %d)", e.Action, e.AgentName, e.ID)
}

// TimeoutError reports that the wall-clock deadline elapsed without a human
// decision.  The request has been force-resolved to Denied; timing out is a
// fail-closed denial variant, not a retriable state.
type TimeoutError struct {
	ID        int64
	AgentName string
	Action    string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("approval: action %q for agent %q timed out after %v (request %d auto-denied)", e.Action, e.AgentName, e.After, e.ID)
}
