package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/chain"
	"github.com/target/ivt-chain/internal/domain/model"
	"github.com/target/ivt-chain/internal/domain/plan"
	apperrors "github.com/target/ivt-chain/internal/errors"
	obserrors "github.com/target/ivt-chain/internal/observability/errors"
	"github.com/target/ivt-chain/internal/observability/metrics"
	"github.com/target/ivt-chain/internal/observability/notify"
	"github.com/target/ivt-chain/internal/observability/statsd"
)

const (
	defaultLockTTL           = 10 * time.Minute
	defaultStatusConcurrency = 4
)

// FailureNotifier delivers chain failure notifications.
type FailureNotifier interface {
	NotifyChainFailure(ctx context.Context, payload notify.ChainFailurePayload)
}

// ChainQueue groups the batch queue collaborators.
type ChainQueue struct {
	Submitter core.Submitter      // Required: accepts jobs
	Inspector core.QueueInspector // Optional: required only by Status
	Backend   string              // Backend name recorded in the journal and metric tags
}

// ChainStorage groups the optional persistence collaborators.
type ChainStorage struct {
	Journal core.ChainRepository // Optional: nil disables journaling
	Locker  core.Locker          // Optional: nil disables the per-model lock
	LockTTL time.Duration
}

// ChainTelemetry groups the optional observability collaborators.
type ChainTelemetry struct {
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Notifier FailureNotifier
}

// ChainServiceOptions groups dependencies for ChainService.
type ChainServiceOptions struct {
	Queue             ChainQueue
	Template          *chain.JobTemplate // Required
	Storage           ChainStorage
	Telemetry         ChainTelemetry
	StatusConcurrency int
}

// ChainService plans a year range, submits it as a dependency chain and journals the result.
type ChainService struct {
	queue       ChainQueue
	tmpl        *chain.JobTemplate
	storage     ChainStorage
	logger      *slog.Logger
	metrics     statsd.Sink
	notifier    FailureNotifier
	concurrency int
	now         func() time.Time
}

// NewChainService constructs a ChainService.
func NewChainService(opts ChainServiceOptions) (*ChainService, error) {
	if opts.Queue.Submitter == nil {
		return nil, errors.New("submitter is required")
	}
	if opts.Template == nil {
		return nil, errors.New("job template is required")
	}

	logger := opts.Telemetry.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Storage.LockTTL <= 0 {
		opts.Storage.LockTTL = defaultLockTTL
	}
	concurrency := opts.StatusConcurrency
	if concurrency < 1 {
		concurrency = defaultStatusConcurrency
	}

	return &ChainService{
		queue:       opts.Queue,
		tmpl:        opts.Template,
		storage:     opts.Storage,
		logger:      logger.With("component", "chain_service", "backend", opts.Queue.Backend),
		metrics:     opts.Telemetry.Metrics,
		notifier:    opts.Telemetry.Notifier,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// SubmitRequest describes one chain submission.
type SubmitRequest struct {
	Model      string
	StartYear  int
	EndYear    int
	StartMonth int
	EndMonth   int
	ChunkSize  int
}

func (r SubmitRequest) planRequest() plan.Request {
	return plan.Request{
		StartYear:  r.StartYear,
		EndYear:    r.EndYear,
		StartMonth: r.StartMonth,
		EndMonth:   r.EndMonth,
		ChunkSize:  r.ChunkSize,
	}
}

// SubmitResult is the outcome of Submit. Jobs may be shorter than Chunks when submission failed.
type SubmitResult struct {
	Run    *model.ChainRun
	Chunks []model.WorkChunk
	Jobs   []model.SubmittedJob
}

// Submit plans req, takes the per-model lock and submits the chunks as an afterok chain.
//
// A non-nil result is returned alongside a submission error so callers can report which
// jobs were left in the queue.
func (s *ChainService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	start := time.Now()
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		return nil, apperrors.ValidationField("model", "model is required")
	}

	chunks, err := plan.Plan(req.planRequest())
	if err != nil {
		s.emit(req.Model, metrics.ResultError, 0, 0, err)
		return nil, err
	}

	release, err := s.lock(ctx, req.Model)
	if err != nil {
		return nil, err
	}
	defer release()

	run, err := s.createRun(ctx, req)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("run_id", run.ID, "model", req.Model)
	log.InfoContext(ctx, "submitting chain", "chunks", len(chunks), "range", rangeLabel(req))

	journal := chain.ObserverFunc(func(ctx context.Context, index int, job model.SubmittedJob) {
		log.InfoContext(ctx, "job submitted",
			"position", index+1,
			"job_id", job.JobID,
			"chunk", job.Chunk.String(),
		)
		if s.storage.Journal == nil {
			return
		}
		if err := s.storage.Journal.RecordJob(ctx, run.ID, index, job); err != nil {
			log.ErrorContext(ctx, "failed to journal job", "job_id", job.JobID, "error", err)
		}
	})

	jobs, subErr := chain.Submit(ctx, s.queue.Submitter, s.tmpl, req.Model, chunks, journal)
	result := &SubmitResult{Run: run, Chunks: chunks, Jobs: jobs}

	status := model.ChainStatusSubmitted
	var lastErr string
	if subErr != nil {
		status = model.ChainStatusFailed
		lastErr = subErr.Error()
	}
	s.finishRun(ctx, run, status, lastErr)

	if subErr != nil {
		log.ErrorContext(ctx, "chain submission failed", "jobs_submitted", len(jobs), "error", subErr)
		s.emit(req.Model, metrics.ResultError, len(jobs), time.Since(start), subErr)
		s.notifyFailure(ctx, run, jobs, subErr)
		return result, subErr
	}

	log.InfoContext(ctx, "chain submitted", "jobs", len(jobs), "duration", time.Since(start))
	s.emit(req.Model, metrics.ResultSuccess, len(jobs), time.Since(start), nil)
	return result, nil
}

func (s *ChainService) lock(ctx context.Context, modelName string) (func(), error) {
	if s.storage.Locker == nil {
		return func() {}, nil
	}

	key := "submit:" + modelName
	token, ok, err := s.storage.Locker.Acquire(ctx, key, s.storage.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		s.emit(modelName, metrics.ResultLocked, 0, 0, nil)
		return nil, apperrors.Conflictf("a chain submission for %s is already in progress", modelName)
	}

	return func() {
		// Release even when the caller's context was cancelled mid-chain.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		released, err := s.storage.Locker.Release(rctx, key, token)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "failed to release submission lock", "key", key, "error", err)
		case !released:
			s.logger.WarnContext(ctx, "submission lock expired before release", "key", key)
		}
	}, nil
}

func (s *ChainService) createRun(ctx context.Context, req SubmitRequest) (*model.ChainRun, error) {
	if s.storage.Journal == nil {
		now := s.now()
		return &model.ChainRun{
			ID:         uuid.NewString(),
			Model:      req.Model,
			Backend:    s.queue.Backend,
			Status:     model.ChainStatusSubmitting,
			StartYear:  req.StartYear,
			EndYear:    req.EndYear,
			StartMonth: req.StartMonth,
			EndMonth:   req.EndMonth,
			ChunkSize:  req.ChunkSize,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	}

	run, err := s.storage.Journal.CreateRun(ctx, core.CreateChainRunParams{
		Model:      req.Model,
		Backend:    s.queue.Backend,
		StartYear:  req.StartYear,
		EndYear:    req.EndYear,
		StartMonth: req.StartMonth,
		EndMonth:   req.EndMonth,
		ChunkSize:  req.ChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create chain run: %w", err)
	}
	return run, nil
}

func (s *ChainService) finishRun(ctx context.Context, run *model.ChainRun, status model.ChainStatus, lastErr string) {
	run.Status = status
	run.UpdatedAt = s.now()
	if lastErr != "" {
		run.LastError = &lastErr
	}
	if s.storage.Journal == nil {
		return
	}
	if err := s.storage.Journal.FinishRun(context.WithoutCancel(ctx), run.ID, status, lastErr); err != nil {
		s.logger.ErrorContext(ctx, "failed to finish chain run", "run_id", run.ID, "status", status, "error", err)
	}
}

func (s *ChainService) emit(modelName, result string, jobs int, d time.Duration, err error) {
	metrics.EmitChainSubmission(s.metrics, metrics.ChainMetric{
		Backend:  s.queue.Backend,
		Model:    modelName,
		Result:   result,
		Jobs:     jobs,
		Duration: d,
		Err:      err,
	})
}

func (s *ChainService) notifyFailure(ctx context.Context, run *model.ChainRun, jobs []model.SubmittedJob, err error) {
	if s.notifier == nil {
		return
	}

	payload := notify.ChainFailurePayload{
		RunID:         run.ID,
		Model:         run.Model,
		Backend:       run.Backend,
		JobsSubmitted: len(jobs),
		Error:         err.Error(),
		ErrorClass:    obserrors.Classify(err),
		Severity:      notify.SeverityCritical,
		OccurredAt:    s.now(),
	}
	if len(jobs) > 0 {
		payload.LastJobID = jobs[len(jobs)-1].JobID
	}
	var subErr *chain.SubmissionError
	if errors.As(err, &subErr) {
		payload.ChunkIndex = subErr.Index + 1
		payload.Chunk = subErr.Chunk.String()
	}

	s.notifier.NotifyChainFailure(context.WithoutCancel(ctx), payload)
}

func rangeLabel(req SubmitRequest) string {
	return fmt.Sprintf("%04d-%02d..%04d-%02d/%d", req.StartYear, req.StartMonth, req.EndYear, req.EndMonth, req.ChunkSize)
}

// ChainReport is a journaled run with the live queue state of each of its jobs.
type ChainReport struct {
	Run  *model.ChainRun
	Jobs []model.JobStatus
}

// Get loads a journaled run and its jobs without querying the queue.
func (s *ChainService) Get(ctx context.Context, runID string) (*ChainReport, error) {
	if s.storage.Journal == nil {
		return nil, apperrors.Validation("submission journal is disabled")
	}
	run, err := s.storage.Journal.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get chain run: %w", err)
	}
	jobs, err := s.storage.Journal.ListJobs(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list chain jobs: %w", err)
	}

	report := &ChainReport{Run: run, Jobs: make([]model.JobStatus, len(jobs))}
	for i, job := range jobs {
		report.Jobs[i] = model.JobStatus{Position: i + 1, Job: job, State: model.QueueStateUnknown}
	}
	return report, nil
}

// Status loads a journaled run and asks the queue for the state of every job, in chain order.
// Per-job lookup failures are reported in JobStatus.Err rather than failing the whole report.
func (s *ChainService) Status(ctx context.Context, runID string) (*ChainReport, error) {
	if s.queue.Inspector == nil {
		return nil, apperrors.Validation("queue backend does not support status queries")
	}

	report, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range report.Jobs {
		g.Go(func() error {
			st := &report.Jobs[i]
			state, err := s.queue.Inspector.State(gctx, st.Job.JobID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				st.State = model.QueueStateUnknown
				st.Err = err.Error()
				return nil
			}
			st.State = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query queue state: %w", err)
	}

	metrics.EmitStatusQuery(s.metrics, s.queue.Backend, len(report.Jobs), time.Since(start))
	return report, nil
}

// List returns journaled runs, newest first.
func (s *ChainService) List(ctx context.Context, opts model.ChainRunListOptions) ([]*model.ChainRun, error) {
	if s.storage.Journal == nil {
		return nil, apperrors.Validation("submission journal is disabled")
	}
	runs, err := s.storage.Journal.ListRuns(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list chain runs: %w", err)
	}
	return runs, nil
}
