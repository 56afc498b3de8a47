package queue

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/model"
)

// DefaultSlurmStateExpr extracts the current state from `sacct --json` output.
const DefaultSlurmStateExpr = "jobs[0].state.current[0]"

var (
	_ core.Submitter      = (*Slurm)(nil)
	_ core.QueueInspector = (*Slurm)(nil)

	reSubmittedBatchJob = regexp.MustCompile(`Submitted batch job (\S+)`)
)

// SlurmOptions configures the Slurm adapter.
type SlurmOptions struct {
	Runner shell.Runner
	// ExtraArgs are passed to sbatch before the script (account, partition, time limit...).
	ExtraArgs []string
	// StateExpr is the JMESPath expression applied to `sacct -j ID --json` output.
	StateExpr string
	Logger    *slog.Logger
}

// Slurm submits jobs with sbatch and inspects them with sacct.
type Slurm struct {
	runner    shell.Runner
	extraArgs []string
	stateExpr string
	logger    *slog.Logger
}

// NewSlurm creates a Slurm adapter.
func NewSlurm(opts SlurmOptions) (*Slurm, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("slurm: runner is required")
	}
	expr := opts.StateExpr
	if strings.TrimSpace(expr) == "" {
		expr = DefaultSlurmStateExpr
	}
	if err := validateExpr(expr); err != nil {
		return nil, fmt.Errorf("slurm: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Slurm{
		runner:    opts.Runner,
		extraArgs: opts.ExtraArgs,
		stateExpr: expr,
		logger:    logger.With("component", "slurm"),
	}, nil
}

// SubmitCommand builds the sbatch invocation for job.
func (s *Slurm) SubmitCommand(job model.JobSpec, dep *model.Dependency) shell.Command {
	args := []string{"--parsable", "--job-name", job.Name}
	if dep != nil {
		args = append(args, fmt.Sprintf("--dependency=%s:%s", dep.Condition, dep.JobID))
	}
	args = append(args, s.extraArgs...)
	args = append(args, job.Script)
	args = append(args, job.Args...)
	return shell.Command{Name: "sbatch", Args: args}
}

// Submit implements core.Submitter.
func (s *Slurm) Submit(ctx context.Context, job model.JobSpec, dep *model.Dependency) (string, error) {
	cmd := s.SubmitCommand(job, dep)
	out, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("sbatch: %w", err)
	}
	id, err := parseSlurmJobID(string(out))
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "job submitted", "job_id", id, "name", job.Name, "command", cmd.String())
	return id, nil
}

// parseSlurmJobID accepts `--parsable` output ("1234" or "1234;cluster") and the
// classic "Submitted batch job 1234" line.
func parseSlurmJobID(out string) (string, error) {
	out = strings.TrimSpace(out)
	if m := reSubmittedBatchJob.FindStringSubmatch(out); len(m) == 2 {
		return m[1], nil
	}
	line, _, _ := strings.Cut(out, "\n")
	id, _, _ := strings.Cut(strings.TrimSpace(line), ";")
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, " \t") {
		return "", fmt.Errorf("sbatch returned no job id (output %q)", out)
	}
	return id, nil
}

// State implements core.QueueInspector.
func (s *Slurm) State(ctx context.Context, jobID string) (model.QueueState, error) {
	out, err := s.runner.Run(ctx, shell.Command{Name: "sacct", Args: []string{"-j", jobID, "--json"}})
	if err != nil {
		return model.QueueStateUnknown, fmt.Errorf("sacct: %w", err)
	}
	v, err := searchJSON(out, s.stateExpr)
	if err != nil {
		return model.QueueStateUnknown, fmt.Errorf("sacct job %s: %w", jobID, err)
	}
	raw := stateString(v)
	if raw == "" {
		// sacct has no record yet for jobs that were only just accepted
		return model.QueueStatePending, nil
	}
	return slurmState(raw), nil
}
