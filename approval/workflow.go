package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Baalavignesh/Aegis/internal/clock"
	"github.com/Baalavignesh/Aegis/messaging"
	qmem "github.com/Baalavignesh/Aegis/messaging/memory"
	"github.com/Baalavignesh/Aegis/store"
)

const (
	// DefaultPollInterval is the fixed interval at which a blocked caller
	// re-reads its request.  It trades decision latency against store load.
	DefaultPollInterval = 2 * time.Second

	// DefaultTimeout bounds a blocking wait.  On expiry the request is
	// force-resolved to Denied, the fail-closed default.  Configure a
	// non-positive timeout to select the unbounded poll-forever variant.
	DefaultTimeout = 5 * time.Minute
)

// Workflow drives approval requests from creation to a terminal decision.
// All dedup atomicity lives in the store; the workflow holds no locks and a
// blocking wait pins only its own caller.
type Workflow struct {
	store        store.Store
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
	events       messaging.Queue[Event]
}

// Option customises a Workflow.
type Option func(*Workflow)

// WithPollInterval sets the polling interval for blocking waits.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Workflow) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithTimeout sets the blocking-wait deadline.  A non-positive value selects
// the unbounded variant that polls until a decision arrives or ctx is done.
func WithTimeout(timeout time.Duration) Option {
	return func(w *Workflow) { w.timeout = timeout }
}

// WithLogger sets the workflow logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueue replaces the event fan-out queue.  Queues implementing
// messaging.TryPublisher get non-blocking publication with drop-on-full
// semantics; other queues must accept publishes without stalling.
func WithQueue(q messaging.Queue[Event]) Option {
	return func(w *Workflow) {
		if q != nil {
			w.events = q
		}
	}
}

// New creates a workflow over the supplied store.
func New(s store.Store, options ...Option) *Workflow {
	ret := &Workflow{
		store:        s,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		logger:       zap.NewNop(),
		events:       qmem.NewQueue[Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Events exposes the queue carrying request lifecycle events.
func (w *Workflow) Events() messaging.Queue[Event] { return w.events }

// Await blocks the caller until the request for (agent, action) reaches a
// terminal state.  An existing decided request replays its terminal result
// immediately without creating a second row; an existing pending request is
// resumed; otherwise a new request is created and a Pending audit entry
// appended.  nil means approved.
func (w *Workflow) Await(ctx context.Context, agentName, action string, args json.RawMessage) error {
	request, err := w.open(ctx, agentName, action, args)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		// Idempotent replay of an already-decided request.
		return w.terminal(request)
	}

	var deadline <-chan time.Time
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline:
			return w.expire(ctx, request)

		case <-ticker.C:
			current, err := w.store.GetApproval(ctx, request.ID)
			if err != nil {
				// The loop retries store reads, never the decision
				// itself.
				w.logger.Warn("approval poll failed",
					zap.Int64("id", request.ID),
					zap.String("agent", agentName),
					zap.String("action", action),
					zap.Error(err))
				continue
			}
			if !current.Status.Terminal() {
				continue
			}
			return w.terminal(current)
		}
	}
}

// PollOrRequest is the non-blocking variant: it never sleeps.  It returns nil
// when the request is approved, *DeniedError when denied, and ErrPending when
// a decision is still outstanding (creating the request on first encounter).
func (w *Workflow) PollOrRequest(ctx context.Context, agentName, action string, args json.RawMessage) error {
	request, err := w.open(ctx, agentName, action, args)
	if err != nil {
		return err
	}
	if !request.Status.Terminal() {
		return ErrPending
	}
	return w.terminal(request)
}

// ListPending returns all unresolved requests, oldest first.
func (w *Workflow) ListPending(ctx context.Context) ([]*store.Approval, error) {
	return w.store.ListPendingApprovals(ctx)
}

// Decide records a human decision for a pending request, appends the single
// Approved or Denied audit entry for it, and publishes a decision event.
// Deciding an already-decided request fails with store.ErrAlreadyDecided, so
// the audit entry is written exactly once no matter how many callers await
// the request.
func (w *Workflow) Decide(ctx context.Context, id int64, approved bool) error {
	status := store.ApprovalDenied
	if approved {
		status = store.ApprovalApproved
	}
	if err := w.store.DecideApproval(ctx, id, status); err != nil {
		return err
	}
	if request, err := w.store.GetApproval(ctx, id); err == nil {
		w.recordDecision(ctx, request)
		w.publish(ctx, TopicRequestDecided, request)
	}
	return nil
}

// open looks up or atomically creates the request for (agent, action) and
// emits the Pending audit entry plus created event on first encounter.
func (w *Workflow) open(ctx context.Context, agentName, action string, args json.RawMessage) (*store.Approval, error) {
	request, created, err := w.store.FindOrCreateApproval(ctx, agentName, action, args)
	if err != nil {
		return nil, fmt.Errorf("approval %v.%v: %w", agentName, action, err)
	}
	if created {
		w.audit(ctx, request, store.OutcomePending,
			fmt.Sprintf("action %q awaiting human approval (request %d)", action, request.ID))
		w.publish(ctx, TopicRequestCreated, request)
	}
	return request, nil
}

// expire force-resolves a request whose deadline elapsed.  A human decision
// racing the deadline wins: when the store reports the request as already
// decided the terminal result is honoured instead of the timeout.
func (w *Workflow) expire(ctx context.Context, request *store.Approval) error {
	err := w.store.DecideApproval(ctx, request.ID, store.ApprovalDenied)
	if errors.Is(err, store.ErrAlreadyDecided) {
		current, readErr := w.store.GetApproval(ctx, request.ID)
		if readErr != nil {
			// The request is decided but the result is unreadable; a
			// TimedOut record here would misstate a human decision.
			return fmt.Errorf("approval %v.%v: read racing decision: %w", request.AgentName, request.Action, readErr)
		}
		return w.terminal(current)
	}
	if err != nil {
		return fmt.Errorf("approval %v.%v: auto-deny: %w", request.AgentName, request.Action, err)
	}

	w.audit(ctx, request, store.OutcomeTimedOut,
		fmt.Sprintf("no decision within %v, request %d auto-denied", w.timeout, request.ID))
	if current, readErr := w.store.GetApproval(ctx, request.ID); readErr == nil {
		w.publish(ctx, TopicRequestDecided, current)
	}
	return &TimeoutError{ID: request.ID, AgentName: request.AgentName, Action: request.Action, After: w.timeout}
}

// recordDecision appends the audit entry for a freshly recorded decision.
// Only the deciding caller writes it; awaiters observe the terminal state
// without auditing it again.
func (w *Workflow) recordDecision(ctx context.Context, request *store.Approval) {
	outcome := store.OutcomeDenied
	details := fmt.Sprintf("request %d denied by human decision", request.ID)
	if request.Status == store.ApprovalApproved {
		outcome = store.OutcomeApproved
		details = fmt.Sprintf("request %d approved by human decision", request.ID)
	}
	w.audit(ctx, request, outcome, details)
}

func (w *Workflow) terminal(request *store.Approval) error {
	if request.Status == store.ApprovalApproved {
		return nil
	}
	return &DeniedError{ID: request.ID, AgentName: request.AgentName, Action: request.Action}
}

func (w *Workflow) audit(ctx context.Context, request *store.Approval, outcome store.Outcome, details string) {
	if _, err := w.store.AppendAudit(ctx, &store.AuditEntry{
		Timestamp: clock.Now(),
		AgentName: request.AgentName,
		Action:    request.Action,
		Outcome:   outcome,
		Details:   details,
	}); err != nil {
		w.logger.Warn("audit append failed",
			zap.String("agent", request.AgentName),
			zap.String("action", request.Action),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}

// publish is best-effort: a full or unconsumed queue must never stall the
// governed call, so events are dropped rather than waited on.
func (w *Workflow) publish(ctx context.Context, topic string, request *store.Approval) {
	event := &Event{Topic: topic, Request: request}
	if q, ok := w.events.(messaging.TryPublisher[Event]); ok {
		accepted, err := q.TryPublish(ctx, event)
		if err != nil || !accepted {
			w.logger.Debug("event dropped", zap.String("topic", topic), zap.Error(err))
		}
		return
	}
	if err := w.events.Publish(ctx, event); err != nil {
		w.logger.Debug("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
