package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Baalavignesh/Aegis/store"
)

// newTestStore connects to the database named by AEGIS_POSTGRES_TEST_URL and
// resets the governance tables. Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("AEGIS_POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("AEGIS_POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	s, err := New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE agents, policies, approvals, audit_log RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestFindOrCreateApprovalDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	args := json.RawMessage(`{"order":17}`)

	first, created, err := s.FindOrCreateApproval(ctx, "billing", "refund", args)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, store.ApprovalPending, first.Status)

	second, created, err := s.FindOrCreateApproval(ctx, "billing", "refund", args)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestFindOrCreateApprovalReplaysDecided(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.FindOrCreateApproval(ctx, "billing", "refund", nil)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, s.DecideApproval(ctx, first.ID, store.ApprovalApproved))

	// The decided row is no longer covered by the partial index, yet a
	// repeat ask must replay it instead of opening a new request.
	replayed, created, err := s.FindOrCreateApproval(ctx, "billing", "refund", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replayed.ID)
	assert.Equal(t, store.ApprovalApproved, replayed.Status)

	pending, err := s.ListPendingApprovals(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFindOrCreateApprovalPrefersPendingOverDecided(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _, err := s.FindOrCreateApproval(ctx, "billing", "refund", nil)
	require.NoError(t, err)
	require.NoError(t, s.DecideApproval(ctx, first.ID, store.ApprovalDenied))

	// A fresh pending row for the pair, inserted out of band, must win over
	// the older decided one.
	var pendingID int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO approvals (agent_name, action) VALUES ($1, $2) RETURNING id`,
		"billing", "refund").Scan(&pendingID)
	require.NoError(t, err)

	found, created, err := s.FindOrCreateApproval(ctx, "billing", "refund", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, pendingID, found.ID)
	assert.Equal(t, store.ApprovalPending, found.Status)
}

func TestDecideApprovalExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	approval, _, err := s.FindOrCreateApproval(ctx, "billing", "refund", nil)
	require.NoError(t, err)

	require.NoError(t, s.DecideApproval(ctx, approval.ID, store.ApprovalDenied))
	err = s.DecideApproval(ctx, approval.ID, store.ApprovalApproved)
	assert.ErrorIs(t, err, store.ErrAlreadyDecided)

	current, err := s.GetApproval(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ApprovalDenied, current.Status)
}
