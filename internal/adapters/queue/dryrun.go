package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/model"
	apperrors "github.com/target/ivt-chain/internal/errors"
)

var (
	_ core.Submitter      = (*DryRun)(nil)
	_ core.QueueInspector = (*DryRun)(nil)
)

// DryRunCall records one Submit call made against a DryRun queue.
type DryRunCall struct {
	ID  string
	Job model.JobSpec
	Dep *model.Dependency
}

// DryRun is an in-memory queue that accepts every job and assigns ids dry-1, dry-2, ...
type DryRun struct {
	// FailAt makes the n-th Submit call (1-based) fail. Zero never fails.
	FailAt int

	mu    sync.Mutex
	calls []DryRunCall
	seq   int
}

// NewDryRun returns an empty DryRun queue.
func NewDryRun() *DryRun { return &DryRun{} }

// Submit implements core.Submitter.
func (d *DryRun) Submit(ctx context.Context, job model.JobSpec, dep *model.Dependency) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.FailAt > 0 && d.seq == d.FailAt {
		return "", fmt.Errorf("dry-run: submission %d rejected", d.seq)
	}
	id := fmt.Sprintf("dry-%d", d.seq)
	var depCopy *model.Dependency
	if dep != nil {
		c := *dep
		depCopy = &c
	}
	d.calls = append(d.calls, DryRunCall{ID: id, Job: job, Dep: depCopy})
	return id, nil
}

// State implements core.QueueInspector. Accepted dry-run jobs never leave the pending state.
func (d *DryRun) State(_ context.Context, jobID string) (model.QueueState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c.ID == jobID {
			return model.QueueStatePending, nil
		}
	}
	return model.QueueStateUnknown, apperrors.NotFoundf("dry-run job %s not found", jobID)
}

// Calls returns a copy of the accepted submissions in order.
func (d *DryRun) Calls() []DryRunCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DryRunCall, len(d.calls))
	copy(out, d.calls)
	return out
}
