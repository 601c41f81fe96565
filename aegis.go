package aegis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Baalavignesh/Aegis/approval"
	"github.com/Baalavignesh/Aegis/identity"
	"github.com/Baalavignesh/Aegis/messaging"
	"github.com/Baalavignesh/Aegis/monitor"
	"github.com/Baalavignesh/Aegis/store"
	"github.com/Baalavignesh/Aegis/store/memory"
	"github.com/Baalavignesh/Aegis/store/postgres"
	"github.com/Baalavignesh/Aegis/store/rest"
	"github.com/Baalavignesh/Aegis/tracing"
)

// Service is the high-level governance façade. It wires the policy store,
// decision engine, approval workflow and monitored-call interceptor together.
type Service struct {
	config      *Config
	store       store.Store
	approvals   *approval.Workflow
	interceptor *monitor.Interceptor
	observer    monitor.Observer
	logger      *zap.Logger
	queue       messaging.Queue[approval.Event]
}

// New creates a governance service. With no options it runs entirely
// in-memory.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

// NewFromConfig validates config, connects the configured store backend and
// builds the service. Backends whose construction can fail (postgres) are
// only reachable through this constructor; New falls back to memory for
// anything it cannot build itself.
func NewFromConfig(ctx context.Context, config *Config, options ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	base := []Option{WithConfig(config)}
	if config.Store.Backend == "postgres" {
		st, err := postgres.New(ctx, config.Store.URL)
		if err != nil {
			return nil, err
		}
		base = append(base, WithStore(st))
	}
	return New(append(base, options...)...), nil
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()

	approvalOptions := []approval.Option{
		approval.WithPollInterval(s.config.Approval.PollInterval),
		approval.WithTimeout(s.config.Approval.Timeout),
		approval.WithLogger(s.logger),
	}
	if s.queue != nil {
		approvalOptions = append(approvalOptions, approval.WithQueue(s.queue))
	}
	s.approvals = approval.New(s.store, approvalOptions...)

	interceptorOptions := []monitor.Option{monitor.WithLogger(s.logger)}
	if s.observer != nil {
		interceptorOptions = append(interceptorOptions, monitor.WithObserver(s.observer))
	}
	s.interceptor = monitor.New(s.store, s.approvals, interceptorOptions...)
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.store == nil {
		switch s.config.Store.Backend {
		case "rest":
			s.store = rest.New(s.config.Store.URL, rest.WithLogger(s.logger))
		default:
			s.store = memory.New()
		}
	}
	if s.config.Tracing.Enabled {
		_ = tracing.Init(s.config.Tracing.ServiceName, "", s.config.Tracing.OutputFile)
	}
}

// Store exposes the underlying policy store.
func (s *Service) Store() store.Store { return s.store }

// Approvals exposes the approval workflow, e.g. for wiring an auto-decider
// or consuming approval events.
func (s *Service) Approvals() *approval.Workflow { return s.approvals }

// AgentSpec declares an agent and its action policies.
type AgentSpec struct {
	Name   string
	Owner  string
	Allow  []string
	Block  []string
	Review []string
}

// Agent is a registered agent handle with its identity bound in.
type Agent struct {
	name    string
	service *Service
}

// Register upserts the agent and replaces the policy rows for every listed
// action, last write wins. Registration is idempotent and never resets a
// paused agent back to active.
func (s *Service) Register(ctx context.Context, spec AgentSpec) (*Agent, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if err := s.store.UpsertAgent(ctx, spec.Name, spec.Owner); err != nil {
		return nil, err
	}
	rules := []struct {
		actions []string
		rule    store.Rule
	}{
		{spec.Allow, store.RuleAllow},
		{spec.Block, store.RuleBlock},
		{spec.Review, store.RuleReview},
	}
	for _, group := range rules {
		for _, action := range group.actions {
			if err := s.store.UpsertPolicy(ctx, spec.Name, action, group.rule); err != nil {
				return nil, err
			}
		}
	}
	return &Agent{name: spec.Name, service: s}, nil
}

// Agent returns a handle for an already registered agent.
func (s *Service) Agent(name string) *Agent {
	return &Agent{name: name, service: s}
}

// Exec runs fn as a monitored call attributed to the ambient agent bound to
// ctx via Agent.Scope or identity.WithAgent.
func (s *Service) Exec(ctx context.Context, action string, args any, fn monitor.Func) (any, error) {
	return s.interceptor.Invoke(ctx, "", action, args, fn)
}

// Pause flips the agent's kill-switch. Every subsequent monitored call is
// rejected until Revive, regardless of policy rules.
func (s *Service) Pause(ctx context.Context, name string) error {
	return s.store.SetAgentStatus(ctx, name, store.StatusPaused)
}

// Revive re-activates a paused agent.
func (s *Service) Revive(ctx context.Context, name string) error {
	return s.store.SetAgentStatus(ctx, name, store.StatusActive)
}

// Logs returns the last limit audit entries, oldest first. An empty name
// reads across all agents.
func (s *Service) Logs(ctx context.Context, name string, limit int) ([]*store.AuditEntry, error) {
	return s.store.ReadAudit(ctx, name, limit)
}

// PendingApprovals lists approval requests awaiting a human decision.
func (s *Service) PendingApprovals(ctx context.Context) ([]*store.Approval, error) {
	return s.approvals.ListPending(ctx)
}

// DecideApproval resolves a pending request. It fails with
// store.ErrAlreadyDecided if the request was already resolved.
func (s *Service) DecideApproval(ctx context.Context, id int64, approved bool) error {
	return s.approvals.Decide(ctx, id, approved)
}

// Name returns the agent identity the handle is bound to.
func (a *Agent) Name() string { return a.name }

// Scope binds the agent identity to ctx so that calls deeper in the call
// tree resolve it ambiently.
func (a *Agent) Scope(ctx context.Context) context.Context {
	return identity.WithAgent(ctx, a.name)
}

// Exec runs fn as a monitored call attributed to this agent.
func (a *Agent) Exec(ctx context.Context, action string, args any, fn monitor.Func) (any, error) {
	return a.service.interceptor.Invoke(ctx, a.name, action, args, fn)
}

// Wrap binds (agent, action, fn) into a typed function whose every call is
// monitored.
func Wrap[I, O any](agent *Agent, action string, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return monitor.Wrap(agent.service.interceptor, agent.name, action, fn)
}
