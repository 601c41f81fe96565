package aegis

import (
	"time"

	"go.uber.org/zap"

	"github.com/Baalavignesh/Aegis/approval"
	"github.com/Baalavignesh/Aegis/messaging"
	"github.com/Baalavignesh/Aegis/monitor"
	"github.com/Baalavignesh/Aegis/store"
	"github.com/Baalavignesh/Aegis/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the governance service.
type Option func(s *Service)

// WithConfig sets the full configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithStore sets the policy store, overriding the configured backend.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithObserver sets the decision observer hook.
func WithObserver(observer monitor.Observer) Option {
	return func(s *Service) { s.observer = observer }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPollInterval sets how often pending approvals are re-checked.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.ensureConfig()
		s.config.Approval.PollInterval = interval
	}
}

// WithApprovalTimeout bounds how long a monitored call waits for a human
// decision before the request is auto-denied. Zero or negative disables the
// bound.
func WithApprovalTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.ensureConfig()
		s.config.Approval.Timeout = timeout
	}
}

// WithQueue sets the approval event queue.
func WithQueue(queue messaging.Queue[approval.Event]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise spans are written to the supplied file
// path. The function is safe to call multiple times, the first successful
// initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for example OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

func (s *Service) ensureConfig() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
}
