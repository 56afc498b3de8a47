// Package chain submits planned chunks as a linear chain of batch jobs,
// each released only when its predecessor completed successfully.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/model"
	apperrors "github.com/target/ivt-chain/internal/errors"
)

// Observer is notified after the queue accepts each job, before the next one is submitted.
type Observer interface {
	OnSubmitted(ctx context.Context, index int, job model.SubmittedJob)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, index int, job model.SubmittedJob)

// OnSubmitted calls f.
func (f ObserverFunc) OnSubmitted(ctx context.Context, index int, job model.SubmittedJob) {
	f(ctx, index, job)
}

// SubmissionError reports the chunk whose submission failed. Chunks after Index were never submitted.
type SubmissionError struct {
	Index int
	Chunk model.WorkChunk
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("chunk %d (%s): %v", e.Index+1, e.Chunk, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Submit hands the chunks to sub in order. The first job has no dependency; every later job
// depends (afterok) on the job submitted immediately before it.
//
// On failure Submit stops, returns the jobs accepted so far and a *SubmissionError.
// Accepted jobs are left in the queue; the failed chunk's successors are never submitted.
func Submit(
	ctx context.Context,
	sub core.Submitter,
	tmpl *JobTemplate,
	modelName string,
	chunks []model.WorkChunk,
	observers ...Observer,
) ([]model.SubmittedJob, error) {
	jobs := make([]model.SubmittedJob, 0, len(chunks))
	var prev *model.SubmittedJob

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return jobs, &SubmissionError{Index: i, Chunk: c, Err: err}
		}

		spec, err := tmpl.Render(modelName, c)
		if err != nil {
			return jobs, &SubmissionError{
				Index: i,
				Chunk: c,
				Err:   apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job template"),
			}
		}

		var dep *model.Dependency
		if prev != nil {
			dep = &model.Dependency{JobID: prev.JobID, Condition: model.DependencyAfterOK}
		}

		id, err := sub.Submit(ctx, spec, dep)
		if err != nil {
			return jobs, &SubmissionError{
				Index: i,
				Chunk: c,
				Err:   apperrors.Wrapf(err, apperrors.ErrCodeSubmission, "queue rejected job %s", spec.Name),
			}
		}

		job := model.SubmittedJob{JobID: id, Chunk: c, SubmittedAt: time.Now().UTC()}
		if dep != nil {
			depID := dep.JobID
			job.DependsOn = &depID
		}
		jobs = append(jobs, job)
		prev = &jobs[len(jobs)-1]

		for _, o := range observers {
			o.OnSubmitted(ctx, i, job)
		}
	}

	return jobs, nil
}
