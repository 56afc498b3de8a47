package config

import (
	"fmt"
	"strings"
	"time"
)

// QueueBackend names the batch queue implementation used for submissions.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type QueueBackend string

const (
	// QueueBackendSlurm submits with sbatch and inspects with sacct.
	QueueBackendSlurm QueueBackend = "slurm"
	// QueueBackendPBS submits with qsub and inspects with qstat.
	QueueBackendPBS QueueBackend = "pbs"
	// QueueBackendDryRun records submissions in memory and never touches a queue.
	QueueBackendDryRun QueueBackend = "dry-run"
)

// Valid returns true if the backend is known.
func (b QueueBackend) Valid() bool {
	return b == QueueBackendSlurm || b == QueueBackendPBS || b == QueueBackendDryRun
}

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (b *QueueBackend) UnmarshalText(text []byte) error {
	parsed, err := ParseQueueBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseQueueBackend parses a backend name, accepting "dryrun" as an alias.
func ParseQueueBackend(s string) (QueueBackend, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "dryrun" {
		v = string(QueueBackendDryRun)
	}
	b := QueueBackend(v)
	if !b.Valid() {
		return "", fmt.Errorf("invalid queue backend: %q (valid options: slurm, pbs, dry-run)", s)
	}
	return b, nil
}

// QueueConfig describes how chunk jobs are rendered and handed to the batch queue.
type QueueConfig struct {
	// Backend selects the queue implementation.
	Backend QueueBackend `env:"QUEUE_BACKEND" envDefault:"slurm"`

	// Script is the job script each chunk job executes.
	Script string `env:"QUEUE_SCRIPT" envDefault:"ivt-chunk"`

	// Args is a text/template rendered per chunk and split on whitespace.
	// Available fields: Model, StartYear, EndYear, StartMonth, EndMonth.
	Args string `env:"QUEUE_ARGS" envDefault:"{{.Model}} {{.StartYear}} {{.EndYear}} {{.StartMonth}} {{.EndMonth}}"`

	// JobName is a text/template for the queue job name.
	JobName string `env:"QUEUE_JOB_NAME" envDefault:"ivt-{{.Model}}-{{.StartYear}}-{{.EndYear}}"`

	// ExtraArgs are passed verbatim to sbatch/qsub before the script (e.g. --account=xyz).
	ExtraArgs []string `env:"QUEUE_EXTRA_ARGS" envSeparator:" "`

	// StateExpr overrides the JMESPath expression used to pull a job state out of
	// the queue's JSON accounting output. Empty selects the backend default.
	StateExpr string `env:"QUEUE_STATE_EXPR"`

	// SubmitTimeout bounds a single submission command.
	SubmitTimeout time.Duration `env:"QUEUE_SUBMIT_TIMEOUT" envDefault:"30s"`

	// StatusConcurrency bounds concurrent state queries for show-chain --status.
	StatusConcurrency int `env:"QUEUE_STATUS_CONCURRENCY" envDefault:"4"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	q.Script = strings.TrimSpace(q.Script)
	q.StateExpr = strings.TrimSpace(q.StateExpr)
	if q.SubmitTimeout < time.Second {
		q.SubmitTimeout = time.Second
	}
	if q.StatusConcurrency < 1 {
		q.StatusConcurrency = 1
	}
	extra := q.ExtraArgs[:0]
	for _, a := range q.ExtraArgs {
		if a = strings.TrimSpace(a); a != "" {
			extra = append(extra, a)
		}
	}
	q.ExtraArgs = extra
}
