package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Common, reusable store errors.  Sentinel variables let callers detect
// conditions via errors.Is instead of brittle string comparisons.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyDecided is returned when a decision is recorded against an
	// approval request that has already left the Pending state.
	ErrAlreadyDecided = errors.New("store: approval already decided")
)

// Store is the policy-store contract.  Implementations must provide the
// atomicity the engine relies on: FindOrCreateApproval is an atomic
// find-or-create keyed on the unresolved (agent, action) pair, and approval
// and audit ids are assigned monotonically by the store.
type Store interface {
	// UpsertAgent creates the agent on first call and updates the owner on
	// re-registration.  Status defaults to Active only on creation and is
	// never reset by a subsequent upsert.
	UpsertAgent(ctx context.Context, name, owner string) error

	// GetAgentStatus returns the live agent status or ErrNotFound.
	GetAgentStatus(ctx context.Context, name string) (AgentStatus, error)

	// SetAgentStatus writes the agent status (kill-switch surface).
	SetAgentStatus(ctx context.Context, name string, status AgentStatus) error

	// UpsertPolicy creates or replaces the rule for (agent, action).
	UpsertPolicy(ctx context.Context, agentName, action string, rule Rule) error

	// GetPolicy returns the rule for (agent, action) or ErrNotFound.
	GetPolicy(ctx context.Context, agentName, action string) (Rule, error)

	// FindOrCreateApproval returns the unresolved approval request for
	// (agent, action), creating one atomically when none exists.  The
	// returned flag is true when a new request was created.  At most one
	// unresolved request per pair may exist at any time.
	FindOrCreateApproval(ctx context.Context, agentName, action string, args json.RawMessage) (*Approval, bool, error)

	// GetApproval returns the approval request by id or ErrNotFound.
	GetApproval(ctx context.Context, id int64) (*Approval, error)

	// DecideApproval moves a Pending request to a terminal status exactly
	// once; ErrAlreadyDecided when the request is no longer Pending.
	DecideApproval(ctx context.Context, id int64, status ApprovalStatus) error

	// ListPendingApprovals returns all unresolved requests, oldest first.
	ListPendingApprovals(ctx context.Context) ([]*Approval, error)

	// AppendAudit appends an audit entry and returns its store-assigned id.
	// The entry timestamp is assigned by the store when zero.
	AppendAudit(ctx context.Context, entry *AuditEntry) (int64, error)

	// ReadAudit returns the last limit entries, oldest first, optionally
	// filtered by agent name (empty matches all).
	ReadAudit(ctx context.Context, agentName string, limit int) ([]*AuditEntry, error)
}
