package store

import (
	"encoding/json"
	"time"
)

// AgentStatus is the live state of an agent identity.  Paused is the
// kill-switch position: it preempts every policy rule, including Allow.
type AgentStatus string

const (
	StatusActive AgentStatus = "ACTIVE"
	StatusPaused AgentStatus = "PAUSED"
)

// Rule classifies a single (agent, action) pair.
type Rule string

const (
	RuleAllow  Rule = "ALLOW"
	RuleBlock  Rule = "BLOCK"
	RuleReview Rule = "REVIEW"
)

// ApprovalStatus is the lifecycle state of an approval request.  A request is
// created Pending and is decided exactly once.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalDenied   ApprovalStatus = "DENIED"
)

// Terminal reports whether the status can no longer change.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalDenied
}

// Outcome is the audit-log classification of a single authorization event.
// One logical action may record more than one outcome, e.g. Pending followed
// by Approved.
type Outcome string

const (
	OutcomeAllowed  Outcome = "ALLOWED"
	OutcomeBlocked  Outcome = "BLOCKED"
	OutcomeKilled   Outcome = "KILLED"
	OutcomePending  Outcome = "PENDING"
	OutcomeApproved Outcome = "APPROVED"
	OutcomeDenied   Outcome = "DENIED"
	OutcomeTimedOut Outcome = "TIMEOUT"
)

// Agent represents a registered agent identity.  Status is the only field
// mutated after registration (kill-switch); agents are never deleted.
type Agent struct {
	Name      string      `json:"name"`
	Owner     string      `json:"owner,omitempty"`
	Status    AgentStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// PolicyRule is a per-agent, per-action classification, unique per
// (agent, action) pair with last-write-wins upsert semantics.
type PolicyRule struct {
	AgentName string `json:"agentName"`
	Action    string `json:"action"`
	Rule      Rule   `json:"rule"`
}

// Approval is a durable record of an action awaiting a human decision.
type Approval struct {
	ID        int64           `json:"id"`
	AgentName string          `json:"agentName"`
	Action    string          `json:"action"`
	Args      json.RawMessage `json:"args,omitempty"`
	Status    ApprovalStatus  `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	DecidedAt *time.Time      `json:"decidedAt,omitempty"`
}

// AuditEntry is a single append-only audit-log record.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AgentName string    `json:"agentName"`
	Action    string    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Details   string    `json:"details,omitempty"`
}
