// Package memory provides an in-memory store.Store implementation.  It keeps
// every entity under a single mutex so that find-or-create deduplication and
// monotonic id assignment stay atomic without external coordination.  It is
// the default store and the store used by the test-suite.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/Baalavignesh/Aegis/internal/clock"
	"github.com/Baalavignesh/Aegis/store"
)

type policyKey struct {
	agent  string
	action string
}

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu             sync.RWMutex
	agents         map[string]*store.Agent
	policies       map[policyKey]store.Rule
	approvals      map[int64]*store.Approval
	audit          []*store.AuditEntry
	nextApprovalID int64
	nextAuditID    int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		agents:         make(map[string]*store.Agent),
		policies:       make(map[policyKey]store.Rule),
		approvals:      make(map[int64]*store.Approval),
		nextApprovalID: 1,
		nextAuditID:    1,
	}
}

func (s *Store) UpsertAgent(_ context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent, ok := s.agents[name]; ok {
		// Re-registration never resets status.
		agent.Owner = owner
		return nil
	}
	s.agents[name] = &store.Agent{
		Name:      name,
		Owner:     owner,
		Status:    store.StatusActive,
		CreatedAt: clock.Now(),
	}
	return nil
}

func (s *Store) GetAgentStatus(_ context.Context, name string) (store.AgentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[name]
	if !ok {
		return "", store.ErrNotFound
	}
	return agent.Status, nil
}

func (s *Store) SetAgentStatus(_ context.Context, name string, status store.AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[name]
	if !ok {
		return store.ErrNotFound
	}
	agent.Status = status
	return nil
}

func (s *Store) UpsertPolicy(_ context.Context, agentName, action string, rule store.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policyKey{agent: agentName, action: action}] = rule
	return nil
}

func (s *Store) GetPolicy(_ context.Context, agentName, action string) (store.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.policies[policyKey{agent: agentName, action: action}]
	if !ok {
		return "", store.ErrNotFound
	}
	return rule, nil
}

func (s *Store) FindOrCreateApproval(_ context.Context, agentName, action string, args json.RawMessage) (*store.Approval, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An existing request for the pair wins regardless of status so that
	// replays of already-decided requests stay idempotent.  Pending requests
	// are preferred over decided ones.
	var existing *store.Approval
	for _, approval := range s.approvals {
		if approval.AgentName != agentName || approval.Action != action {
			continue
		}
		if approval.Status == store.ApprovalPending {
			existing = approval
			break
		}
		if existing == nil || approval.ID > existing.ID {
			existing = approval
		}
	}
	if existing != nil {
		cp := *existing
		return &cp, false, nil
	}

	approval := &store.Approval{
		ID:        s.nextApprovalID,
		AgentName: agentName,
		Action:    action,
		Args:      args,
		Status:    store.ApprovalPending,
		CreatedAt: clock.Now(),
	}
	s.nextApprovalID++
	s.approvals[approval.ID] = approval
	cp := *approval
	return &cp, true, nil
}

func (s *Store) GetApproval(_ context.Context, id int64) (*store.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	approval, ok := s.approvals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *approval
	return &cp, nil
}

func (s *Store) DecideApproval(_ context.Context, id int64, status store.ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	approval, ok := s.approvals[id]
	if !ok {
		return store.ErrNotFound
	}
	if approval.Status != store.ApprovalPending {
		return store.ErrAlreadyDecided
	}
	now := clock.Now()
	approval.Status = status
	approval.DecidedAt = &now
	return nil
}

func (s *Store) ListPendingApprovals(_ context.Context) ([]*store.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make([]*store.Approval, 0)
	for _, approval := range s.approvals {
		if approval.Status == store.ApprovalPending {
			cp := *approval
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (s *Store) AppendAudit(_ context.Context, entry *store.AuditEntry) (int64, error) {
	if entry == nil {
		return 0, store.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	cp.ID = s.nextAuditID
	if cp.Timestamp.IsZero() {
		cp.Timestamp = clock.Now()
	}
	s.nextAuditID++
	s.audit = append(s.audit, &cp)
	return cp.ID, nil
}

func (s *Store) ReadAudit(_ context.Context, agentName string, limit int) ([]*store.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*store.AuditEntry, 0, len(s.audit))
	for _, entry := range s.audit {
		if agentName != "" && entry.AgentName != agentName {
			continue
		}
		cp := *entry
		matched = append(matched, &cp)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

var _ store.Store = (*Store)(nil)
