// Package rest implements store.Store over the governance backend's HTTP
// API.  The backend stays the single source of truth and the only writer to
// its database; this client is a thin transport with bounded retries on
// idempotent calls.  Find-or-create atomicity for approvals is delegated to
// the backend, which upholds the single-unresolved-request invariant.
//
// The expected contract extends the minimal /sdk surface: POST /sdk/approval
// must return the full approval record plus a created flag rather than a bare
// id, and GET /sdk/approval/{id} must read a single request by id.  Backends
// exposing only id-returning variants need those two routes added before this
// client can drive them.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"

	"github.com/Baalavignesh/Aegis/store"
)

const defaultTimeout = 30 * time.Second

// Client talks to the backend's /sdk routes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	attempts   uint
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryAttempts bounds the retries applied to idempotent calls.
func WithRetryAttempts(attempts uint) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, options ...Option) *Client {
	ret := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
		attempts:   3,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// statusError carries a non-2xx backend response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rest: backend returned %d: %s", e.code, e.body)
}

// mapError converts backend status codes onto store sentinel errors.
func mapError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusNotFound:
			return store.ErrNotFound
		case http.StatusConflict:
			return store.ErrAlreadyDecided
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode %v: %w", path, err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("rest: build %v: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %v %v: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decode %v: %w", path, err)
	}
	return nil
}

// retriable wraps idempotent calls with bounded retries.  Responses that map
// onto domain sentinels are not transport faults and are never retried.
func (c *Client) retriable(ctx context.Context, name string, fn func() error) error {
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code >= http.StatusInternalServerError
			}
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying backend call",
				zap.String("call", name), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return mapError(r.Do(fn))
}

func (c *Client) UpsertAgent(ctx context.Context, name, owner string) error {
	body := map[string]string{"name": name, "owner": owner}
	return c.retriable(ctx, "register-agent", func() error {
		return c.do(ctx, http.MethodPost, "/sdk/register-agent", nil, body, nil)
	})
}

func (c *Client) GetAgentStatus(ctx context.Context, name string) (store.AgentStatus, error) {
	var out struct {
		Status store.AgentStatus `json:"status"`
	}
	err := c.retriable(ctx, "agent-status", func() error {
		return c.do(ctx, http.MethodGet, "/sdk/agent-status/"+url.PathEscape(name), nil, nil, &out)
	})
	if err != nil {
		return "", err
	}
	if out.Status == "" {
		return "", store.ErrNotFound
	}
	return out.Status, nil
}

func (c *Client) SetAgentStatus(ctx context.Context, name string, status store.AgentStatus) error {
	body := map[string]string{"name": name, "status": string(status)}
	return c.retriable(ctx, "update-status", func() error {
		return c.do(ctx, http.MethodPost, "/sdk/update-status", nil, body, nil)
	})
}

func (c *Client) UpsertPolicy(ctx context.Context, agentName, action string, rule store.Rule) error {
	body := map[string]string{"agent_name": agentName, "action": action, "rule_type": string(rule)}
	return c.retriable(ctx, "register-policy", func() error {
		return c.do(ctx, http.MethodPost, "/sdk/register-policy", nil, body, nil)
	})
}

func (c *Client) GetPolicy(ctx context.Context, agentName, action string) (store.Rule, error) {
	var out struct {
		Rule store.Rule `json:"rule_type"`
	}
	err := c.retriable(ctx, "policy", func() error {
		return c.do(ctx, http.MethodGet,
			"/sdk/policy/"+url.PathEscape(agentName)+"/"+url.PathEscape(action), nil, nil, &out)
	})
	if err != nil {
		return "", err
	}
	if out.Rule == "" {
		return "", store.ErrNotFound
	}
	return out.Rule, nil
}

func (c *Client) FindOrCreateApproval(ctx context.Context, agentName, action string, args json.RawMessage) (*store.Approval, bool, error) {
	body := map[string]any{"agent_name": agentName, "action": action, "args_json": string(args)}
	var out struct {
		Approval *store.Approval `json:"approval"`
		Created  bool            `json:"created"`
	}
	err := c.retriable(ctx, "approval", func() error {
		return c.do(ctx, http.MethodPost, "/sdk/approval", nil, body, &out)
	})
	if err != nil {
		return nil, false, err
	}
	if out.Approval == nil {
		return nil, false, fmt.Errorf("rest: backend returned no approval record")
	}
	return out.Approval, out.Created, nil
}

func (c *Client) GetApproval(ctx context.Context, id int64) (*store.Approval, error) {
	var out struct {
		Approval *store.Approval `json:"approval"`
	}
	err := c.retriable(ctx, "approval-status", func() error {
		return c.do(ctx, http.MethodGet, fmt.Sprintf("/sdk/approval/%d", id), nil, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	if out.Approval == nil {
		return nil, store.ErrNotFound
	}
	return out.Approval, nil
}

func (c *Client) DecideApproval(ctx context.Context, id int64, status store.ApprovalStatus) error {
	body := map[string]string{"decision": string(status)}
	// Not retried: the backend guards double decisions, and a retried write
	// after an ambiguous failure would be reported as ErrAlreadyDecided.
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sdk/decide-approval/%d", id), nil, body, nil)
	return mapError(err)
}

func (c *Client) ListPendingApprovals(ctx context.Context) ([]*store.Approval, error) {
	var out struct {
		Approvals []*store.Approval `json:"approvals"`
	}
	err := c.retriable(ctx, "pending-approvals", func() error {
		return c.do(ctx, http.MethodGet, "/sdk/pending-approvals", nil, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Approvals, nil
}

func (c *Client) AppendAudit(ctx context.Context, entry *store.AuditEntry) (int64, error) {
	body := map[string]string{
		"agent_name": entry.AgentName,
		"action":     entry.Action,
		"status":     string(entry.Outcome),
		"details":    entry.Details,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/sdk/log", nil, body, &out)
	if err != nil {
		return 0, mapError(err)
	}
	return out.ID, nil
}

func (c *Client) ReadAudit(ctx context.Context, agentName string, limit int) ([]*store.AuditEntry, error) {
	query := url.Values{}
	if agentName != "" {
		query.Set("agent_name", agentName)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	var out struct {
		Entries []*store.AuditEntry `json:"entries"`
	}
	err := c.retriable(ctx, "audit-log", func() error {
		return c.do(ctx, http.MethodGet, "/sdk/audit-log", query, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Entries, nil
}

var _ store.Store = (*Client)(nil)
