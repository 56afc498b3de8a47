// Package core defines the ports between the ivt-chain services and their adapters.
package core

import (
	"context"
	"time"

	"github.com/target/ivt-chain/internal/domain/model"
)

// This file contains the port definitions (hexagonal architecture).
// Services depend on these interfaces; adapters under internal/adapters and internal/data implement them.

// Submitter hands one job to a batch queue.
type Submitter interface {
	// Submit enqueues job, gated on dep when dep is non-nil, and returns the queue-assigned job id.
	// Submit must not retry; a failure means the job was not accepted.
	Submit(ctx context.Context, job model.JobSpec, dep *model.Dependency) (string, error)
}

// QueueInspector reports the scheduler state of a previously submitted job.
type QueueInspector interface {
	State(ctx context.Context, jobID string) (model.QueueState, error)
}

// CreateChainRunParams groups the fields recorded when a chain submission starts.
type CreateChainRunParams struct {
	Model      string
	Backend    string
	StartYear  int
	EndYear    int
	StartMonth int
	EndMonth   int
	ChunkSize  int
}

// ChainRepository journals chain submissions so operators can audit and inspect them later.
type ChainRepository interface {
	// CreateRun inserts a run in status submitting.
	CreateRun(ctx context.Context, params CreateChainRunParams) (*model.ChainRun, error)
	// RecordJob appends an accepted job at the given chain position.
	RecordJob(ctx context.Context, runID string, position int, job model.SubmittedJob) error
	// FinishRun moves the run to its final status; lastErr is stored when non-empty.
	FinishRun(ctx context.Context, runID string, status model.ChainStatus, lastErr string) error
	GetRun(ctx context.Context, runID string) (*model.ChainRun, error)
	ListRuns(ctx context.Context, opts model.ChainRunListOptions) ([]*model.ChainRun, error)
	// ListJobs returns the run's jobs in chain order.
	ListJobs(ctx context.Context, runID string) ([]model.SubmittedJob, error)
}

// Locker provides a mutual-exclusion lease keyed by name.
type Locker interface {
	// Acquire attempts to take the lease. ok is false when another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release drops the lease only if token still owns it. Returns true if the lease was released.
	Release(ctx context.Context, key, token string) (bool, error)
}

// Queue is a batch queue that can both accept and report on jobs.
type Queue interface {
	Submitter
	QueueInspector
}
