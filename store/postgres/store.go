// Package postgres implements store.Store over a pgx connection pool.  The
// dedup invariant, at most one unresolved approval per (agent, action), is
// enforced by a partial unique index: FindOrCreateApproval reads the existing
// row first and falls back to INSERT … ON CONFLICT DO NOTHING, so racing
// creations converge on a single row.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Baalavignesh/Aegis/store"
)

// Schema creates the governance tables.  Intended for dev and test
// bootstrap; production deployments manage migrations themselves.
const Schema = `
CREATE TABLE IF NOT EXISTS agents (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'ACTIVE',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS policies (
	agent_name TEXT NOT NULL,
	action     TEXT NOT NULL,
	rule       TEXT NOT NULL,
	PRIMARY KEY (agent_name, action)
);
CREATE TABLE IF NOT EXISTS approvals (
	id         BIGSERIAL PRIMARY KEY,
	agent_name TEXT NOT NULL,
	action     TEXT NOT NULL,
	args       JSONB,
	status     TEXT NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	decided_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS approvals_unresolved_pair
	ON approvals (agent_name, action) WHERE status = 'PENDING';
CREATE TABLE IF NOT EXISTS audit_log (
	id         BIGSERIAL PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	agent_name TEXT NOT NULL,
	action     TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT ''
);`

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to connString and returns a store over a pgx pool.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping verifies connectivity, intended for startup checks.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) UpsertAgent(ctx context.Context, name, owner string) error {
	// Status is seeded Active only on first creation and never reset here.
	query := `INSERT INTO agents (name, owner) VALUES ($1, $2)
	          ON CONFLICT (name) DO UPDATE SET owner = EXCLUDED.owner`
	if _, err := s.pool.Exec(ctx, query, name, owner); err != nil {
		return fmt.Errorf("postgres: upsert agent %v: %w", name, err)
	}
	return nil
}

func (s *Store) GetAgentStatus(ctx context.Context, name string) (store.AgentStatus, error) {
	var status store.AgentStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM agents WHERE name = $1`, name).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("postgres: agent status %v: %w", name, err)
	}
	return status, nil
}

func (s *Store) SetAgentStatus(ctx context.Context, name string, status store.AgentStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE agents SET status = $1 WHERE name = $2`, status, name)
	if err != nil {
		return fmt.Errorf("postgres: set status %v: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertPolicy(ctx context.Context, agentName, action string, rule store.Rule) error {
	query := `INSERT INTO policies (agent_name, action, rule) VALUES ($1, $2, $3)
	          ON CONFLICT (agent_name, action) DO UPDATE SET rule = EXCLUDED.rule`
	if _, err := s.pool.Exec(ctx, query, agentName, action, rule); err != nil {
		return fmt.Errorf("postgres: upsert policy %v.%v: %w", agentName, action, err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, agentName, action string) (store.Rule, error) {
	var rule store.Rule
	err := s.pool.QueryRow(ctx,
		`SELECT rule FROM policies WHERE agent_name = $1 AND action = $2`, agentName, action).Scan(&rule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("postgres: policy %v.%v: %w", agentName, action, err)
	}
	return rule, nil
}

const approvalColumns = `id, agent_name, action, args, status, created_at, decided_at`

func scanApproval(row pgx.Row) (*store.Approval, error) {
	var approval store.Approval
	err := row.Scan(&approval.ID, &approval.AgentName, &approval.Action,
		&approval.Args, &approval.Status, &approval.CreatedAt, &approval.DecidedAt)
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (s *Store) FindOrCreateApproval(ctx context.Context, agentName, action string, args json.RawMessage) (*store.Approval, bool, error) {
	// An existing row always wins: the pending one if present, otherwise
	// the most recent decided one replays as a durable grant.  The partial
	// unique index only covers PENDING rows, so an INSERT-first scheme
	// would mint a fresh request past a decided history.
	find := fmt.Sprintf(`SELECT %s FROM approvals WHERE agent_name = $1 AND action = $2
	        ORDER BY (status = 'PENDING') DESC, id DESC LIMIT 1`, approvalColumns)
	approval, err := scanApproval(s.pool.QueryRow(ctx, find, agentName, action))
	if err == nil {
		return approval, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("postgres: find approval %v.%v: %w", agentName, action, err)
	}

	// No history for the pair: create.  Two racing first-attempts converge
	// on the index, exactly one INSERT wins and the loser reads the
	// winner's row.
	insert := fmt.Sprintf(`INSERT INTO approvals (agent_name, action, args)
	          VALUES ($1, $2, $3) ON CONFLICT DO NOTHING RETURNING %s`, approvalColumns)
	approval, err = scanApproval(s.pool.QueryRow(ctx, insert, agentName, action, args))
	if err == nil {
		return approval, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("postgres: create approval %v.%v: %w", agentName, action, err)
	}

	approval, err = scanApproval(s.pool.QueryRow(ctx, find, agentName, action))
	if err != nil {
		return nil, false, fmt.Errorf("postgres: find approval %v.%v: %w", agentName, action, err)
	}
	return approval, false, nil
}

func (s *Store) GetApproval(ctx context.Context, id int64) (*store.Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE id = $1`, approvalColumns)
	approval, err := scanApproval(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: approval %d: %w", id, err)
	}
	return approval, nil
}

func (s *Store) DecideApproval(ctx context.Context, id int64, status store.ApprovalStatus) error {
	// The status guard prevents double decisions under concurrent deciders.
	query := `UPDATE approvals SET status = $1, decided_at = NOW()
	          WHERE id = $2 AND status = 'PENDING'`
	tag, err := s.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("postgres: decide approval %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetApproval(ctx, id); err != nil {
			return err
		}
		return store.ErrAlreadyDecided
	}
	return nil
}

func (s *Store) ListPendingApprovals(ctx context.Context) ([]*store.Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE status = 'PENDING' ORDER BY id`, approvalColumns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending approvals: %w", err)
	}
	defer rows.Close()

	approvals := make([]*store.Approval, 0)
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: pending approvals: %w", err)
	}
	return approvals, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *store.AuditEntry) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO audit_log (agent_name, action, outcome, details) VALUES ($1, $2, $3, $4) RETURNING id`,
		entry.AgentName, entry.Action, entry.Outcome, entry.Details).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: append audit: %w", err)
	}
	return id, nil
}

func (s *Store) ReadAudit(ctx context.Context, agentName string, limit int) ([]*store.AuditEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, ts, agent_name, action, outcome, details FROM audit_log`
	args := []any{limit}
	if agentName != "" {
		query += ` WHERE agent_name = $2`
		args = append(args, agentName)
	}
	// Newest N selected first, then flipped to oldest-first for callers.
	query += ` ORDER BY id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: read audit: %w", err)
	}
	defer rows.Close()

	entries := make([]*store.AuditEntry, 0, limit)
	for rows.Next() {
		var entry store.AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.AgentName,
			&entry.Action, &entry.Outcome, &entry.Details); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read audit: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

var _ store.Store = (*Store)(nil)
