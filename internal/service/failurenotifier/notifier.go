package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/ivt-chain/internal/observability/notify"
)

// DryRunBackend names the in-memory queue backend. Failures against it are never delivered.
const DryRunBackend = "dry-run"

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches chain failure events to all registered sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger: logger,
		sinks:  sinks,
	}
}

// NotifyChainFailure fans the payload out to all sinks and waits for every delivery.
func (s *Service) NotifyChainFailure(ctx context.Context, payload notify.ChainFailurePayload) {
	if s == nil || len(s.sinks) == 0 {
		return
	}

	if payload.Backend == DryRunBackend {
		s.logger.DebugContext(ctx, "skipping notification for dry-run chain",
			"run_id", payload.RunID,
			"model", payload.Model,
		)
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendChainFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"run_id", payload.RunID,
					"model", payload.Model,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
