package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Baalavignesh/Aegis/store"
)

func TestAgentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetAgentStatus(ctx, "support")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.UpsertAgent(ctx, "support", "ops-team")
	assert.NoError(t, err)

	status, err := s.GetAgentStatus(ctx, "support")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusActive, status)

	err = s.SetAgentStatus(ctx, "support", store.StatusPaused)
	assert.NoError(t, err)

	// Re-registration must not resurrect a paused agent
	err = s.UpsertAgent(ctx, "support", "other-team")
	assert.NoError(t, err)
	status, err = s.GetAgentStatus(ctx, "support")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusPaused, status)

	err = s.SetAgentStatus(ctx, "ghost", store.StatusPaused)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPolicyLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetPolicy(ctx, "support", "export_data")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.NoError(t, s.UpsertPolicy(ctx, "support", "export_data", store.RuleAllow))
	rule, err := s.GetPolicy(ctx, "support", "export_data")
	assert.NoError(t, err)
	assert.Equal(t, store.RuleAllow, rule)

	assert.NoError(t, s.UpsertPolicy(ctx, "support", "export_data", store.RuleBlock))
	rule, err = s.GetPolicy(ctx, "support", "export_data")
	assert.NoError(t, err)
	assert.Equal(t, store.RuleBlock, rule)
}

func TestFindOrCreateApprovalDedup(t *testing.T) {
	ctx := context.Background()
	s := New()
	args := json.RawMessage(`{"order":42}`)

	first, created, err := s.FindOrCreateApproval(ctx, "support", "export_data", args)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, store.ApprovalPending, first.Status)

	// Second attempt for the same pair resumes the pending request
	second, created, err := s.FindOrCreateApproval(ctx, "support", "export_data", args)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A different pair gets its own request
	other, created, err := s.FindOrCreateApproval(ctx, "support", "delete_data", nil)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestFindOrCreateApprovalReplay(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, _, err := s.FindOrCreateApproval(ctx, "support", "export_data", nil)
	assert.NoError(t, err)
	assert.NoError(t, s.DecideApproval(ctx, first.ID, store.ApprovalApproved))

	// A decided request replays instead of opening a fresh one
	replay, created, err := s.FindOrCreateApproval(ctx, "support", "export_data", nil)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, store.ApprovalApproved, replay.Status)
	assert.NotNil(t, replay.DecidedAt)
}

func TestDecideApprovalExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	request, _, err := s.FindOrCreateApproval(ctx, "support", "export_data", nil)
	assert.NoError(t, err)

	assert.NoError(t, s.DecideApproval(ctx, request.ID, store.ApprovalDenied))
	err = s.DecideApproval(ctx, request.ID, store.ApprovalApproved)
	assert.ErrorIs(t, err, store.ErrAlreadyDecided)

	// The first decision sticks
	current, err := s.GetApproval(ctx, request.ID)
	assert.NoError(t, err)
	assert.Equal(t, store.ApprovalDenied, current.Status)

	err = s.DecideApproval(ctx, 999, store.ApprovalApproved)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindOrCreateApprovalConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()

	const callers = 16
	ids := make([]int64, callers)
	createdCount := make([]bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			request, created, err := s.FindOrCreateApproval(ctx, "support", "export_data", nil)
			assert.NoError(t, err)
			ids[i] = request.ID
			createdCount[i] = created
		}(i)
	}
	wg.Wait()

	creates := 0
	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	for _, created := range createdCount {
		if created {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
}

func TestListPendingApprovals(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, _, _ := s.FindOrCreateApproval(ctx, "support", "export_data", nil)
	second, _, _ := s.FindOrCreateApproval(ctx, "billing", "refund", nil)
	assert.NoError(t, s.DecideApproval(ctx, first.ID, store.ApprovalApproved))

	pending, err := s.ListPendingApprovals(ctx)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	s := New()

	entries := []*store.AuditEntry{
		{AgentName: "support", Action: "lookup", Outcome: store.OutcomeAllowed},
		{AgentName: "billing", Action: "refund", Outcome: store.OutcomeBlocked},
		{AgentName: "support", Action: "export", Outcome: store.OutcomePending},
	}
	var lastID int64
	for _, entry := range entries {
		id, err := s.AppendAudit(ctx, entry)
		assert.NoError(t, err)
		assert.Greater(t, id, lastID)
		lastID = id
	}

	all, err := s.ReadAudit(ctx, "", 10)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	// Oldest first
	assert.Equal(t, store.OutcomeAllowed, all[0].Outcome)
	assert.Equal(t, store.OutcomePending, all[2].Outcome)

	// Limit keeps the most recent entries
	tail, err := s.ReadAudit(ctx, "", 2)
	assert.NoError(t, err)
	assert.Len(t, tail, 2)
	assert.Equal(t, store.OutcomeBlocked, tail[0].Outcome)

	// Agent filter
	supportOnly, err := s.ReadAudit(ctx, "support", 10)
	assert.NoError(t, err)
	assert.Len(t, supportOnly, 2)
	for _, entry := range supportOnly {
		assert.Equal(t, "support", entry.AgentName)
	}
}
