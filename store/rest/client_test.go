package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Baalavignesh/Aegis/store"
)

func TestGetAgentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/sdk/agent-status/support":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "PAUSED"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	status, err := client.GetAgentStatus(context.Background(), "support")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusPaused, status)

	_, err = client.GetAgentStatus(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertAgentAndPolicy(t *testing.T) {
	var agentBody, policyBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/sdk/register-agent":
			_ = json.NewDecoder(r.Body).Decode(&agentBody)
		case "/sdk/register-policy":
			_ = json.NewDecoder(r.Body).Decode(&policyBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	assert.NoError(t, client.UpsertAgent(context.Background(), "support", "ops"))
	assert.Equal(t, map[string]string{"name": "support", "owner": "ops"}, agentBody)

	assert.NoError(t, client.UpsertPolicy(context.Background(), "support", "export_data", store.RuleReview))
	assert.Equal(t, map[string]string{
		"agent_name": "support",
		"action":     "export_data",
		"rule_type":  "REVIEW",
	}, policyBody)
}

func TestFindOrCreateApproval(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdk/approval", r.URL.Path)
		created := atomic.AddInt32(&calls, 1) == 1
		_ = json.NewEncoder(w).Encode(map[string]any{
			"approval": map[string]any{
				"id":        7,
				"agentName": "support",
				"action":    "export_data",
				"status":    "PENDING",
			},
			"created": created,
		})
	}))
	defer server.Close()

	client := New(server.URL)
	approval, created, err := client.FindOrCreateApproval(context.Background(),
		"support", "export_data", json.RawMessage(`{"order":42}`))
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), approval.ID)
	assert.Equal(t, store.ApprovalPending, approval.Status)

	// Dedup on the backend side surfaces as created=false, same id
	approval, created, err = client.FindOrCreateApproval(context.Background(),
		"support", "export_data", nil)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), approval.ID)
}

func TestDecideApprovalConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdk/decide-approval/7", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := New(server.URL)
	err := client.DecideApproval(context.Background(), 7, store.ApprovalApproved)
	assert.ErrorIs(t, err, store.ErrAlreadyDecided)
}

func TestRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ACTIVE"})
	}))
	defer server.Close()

	client := New(server.URL, WithRetryAttempts(3))
	status, err := client.GetAgentStatus(context.Background(), "support")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusActive, status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNoRetryOnNotFound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, WithRetryAttempts(3))
	_, err := client.GetPolicy(context.Background(), "support", "export_data")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReadAudit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdk/audit-log", r.URL.Path)
		assert.Equal(t, "support", r.URL.Query().Get("agent_name"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entries": []map[string]any{
				{"id": 1, "agentName": "support", "action": "lookup", "outcome": "ALLOWED"},
				{"id": 2, "agentName": "support", "action": "export", "outcome": "PENDING"},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	entries, err := client.ReadAudit(context.Background(), "support", 5)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, store.OutcomeAllowed, entries[0].Outcome)
	assert.Equal(t, store.OutcomePending, entries[1].Outcome)
}
