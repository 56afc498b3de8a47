package model

import (
	"fmt"
	"strings"
	"time"
)

// DependencyCondition names the queue condition gating a job on its predecessor.
type DependencyCondition string

// DependencyAfterOK releases a job only once its predecessor completed successfully.
const DependencyAfterOK DependencyCondition = "afterok"

// Dependency links a job to the previously submitted job of the same chain.
type Dependency struct {
	JobID     string
	Condition DependencyCondition
}

// JobSpec is one rendered batch job invocation.
type JobSpec struct {
	Name   string   `json:"name"`
	Script string   `json:"script"`
	Args   []string `json:"args"`
}

// SubmittedJob records a job the queue accepted. DependsOn is nil only for the first job of a chain.
type SubmittedJob struct {
	JobID       string    `json:"job_id"                db:"job_id"`
	Chunk       WorkChunk `json:"chunk"`
	DependsOn   *string   `json:"depends_on,omitempty"  db:"depends_on"`
	SubmittedAt time.Time `json:"submitted_at"          db:"submitted_at"`
}

// ChainStatus is the lifecycle state of a chain submission.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ChainStatus string

const (
	// ChainStatusSubmitting indicates jobs are still being handed to the queue.
	ChainStatusSubmitting ChainStatus = "submitting"
	// ChainStatusSubmitted indicates every chunk was accepted by the queue.
	ChainStatusSubmitted ChainStatus = "submitted"
	// ChainStatusFailed indicates a submission failed and the chain is truncated.
	ChainStatusFailed ChainStatus = "failed"
)

// Valid returns true if the ChainStatus is valid.
func (s ChainStatus) Valid() bool {
	return s == ChainStatusSubmitting || s == ChainStatusSubmitted || s == ChainStatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can be parsed from flags.
func (s *ChainStatus) UnmarshalText(text []byte) error {
	v := ChainStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ChainStatus: %q", v)
	}
	*s = v
	return nil
}

// ChainRun is the journal record of one chain submission.
type ChainRun struct {
	ID         string      `json:"id"                   db:"id"`
	Model      string      `json:"model"                db:"model"`
	Backend    string      `json:"backend"              db:"backend"`
	Status     ChainStatus `json:"status"               db:"status"`
	StartYear  int         `json:"start_year"           db:"start_year"`
	EndYear    int         `json:"end_year"             db:"end_year"`
	StartMonth int         `json:"start_month"          db:"start_month"`
	EndMonth   int         `json:"end_month"            db:"end_month"`
	ChunkSize  int         `json:"chunk_size"           db:"chunk_size"`
	LastError  *string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time   `json:"created_at"           db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"           db:"updated_at"`
}

// ChainRunListOptions filters journal listings.
type ChainRunListOptions struct {
	Model  string
	Status *ChainStatus
	Limit  int
	Offset int
}

// QueueState is the normalised scheduler state of a submitted job.
type QueueState string

const (
	// QueueStatePending indicates the job is waiting (held on its dependency or for resources).
	QueueStatePending QueueState = "pending"
	// QueueStateRunning indicates the job is executing.
	QueueStateRunning QueueState = "running"
	// QueueStateCompleted indicates the job finished successfully.
	QueueStateCompleted QueueState = "completed"
	// QueueStateFailed indicates the job exited non-zero or its dependency can never be met.
	QueueStateFailed QueueState = "failed"
	// QueueStateCancelled indicates the job was removed from the queue.
	QueueStateCancelled QueueState = "cancelled"
	// QueueStateUnknown indicates the scheduler reported a state we do not map.
	QueueStateUnknown QueueState = "unknown"
)

// Terminal reports whether the state can no longer change.
func (s QueueState) Terminal() bool {
	return s == QueueStateCompleted || s == QueueStateFailed || s == QueueStateCancelled
}

// JobStatus pairs a journaled job with the state the queue reports for it.
type JobStatus struct {
	Position int          `json:"position"`
	Job      SubmittedJob `json:"job"`
	State    QueueState   `json:"state"`
	Err      string       `json:"error,omitempty"`
}
