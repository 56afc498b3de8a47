package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/model"
)

const (
	// DefaultPBSStateExpr extracts job_state from `qstat -f -F json` output.
	DefaultPBSStateExpr = "values(Jobs)[0].job_state"

	pbsExitStatusExpr = "values(Jobs)[0].Exit_status"
)

var (
	_ core.Submitter      = (*PBS)(nil)
	_ core.QueueInspector = (*PBS)(nil)
)

// PBSOptions configures the PBS adapter.
type PBSOptions struct {
	Runner    shell.Runner
	ExtraArgs []string
	StateExpr string
	Logger    *slog.Logger
}

// PBS submits jobs with qsub and inspects them with qstat.
type PBS struct {
	runner    shell.Runner
	extraArgs []string
	stateExpr string
	logger    *slog.Logger
}

// NewPBS creates a PBS adapter.
func NewPBS(opts PBSOptions) (*PBS, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("pbs: runner is required")
	}
	expr := opts.StateExpr
	if strings.TrimSpace(expr) == "" {
		expr = DefaultPBSStateExpr
	}
	if err := validateExpr(expr); err != nil {
		return nil, fmt.Errorf("pbs: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PBS{
		runner:    opts.Runner,
		extraArgs: opts.ExtraArgs,
		stateExpr: expr,
		logger:    logger.With("component", "pbs"),
	}, nil
}

// SubmitCommand builds the qsub invocation for job.
// Arguments after "--" are the executable and its arguments.
func (p *PBS) SubmitCommand(job model.JobSpec, dep *model.Dependency) shell.Command {
	args := []string{"-N", job.Name}
	if dep != nil {
		args = append(args, "-W", fmt.Sprintf("depend=%s:%s", dep.Condition, dep.JobID))
	}
	args = append(args, p.extraArgs...)
	args = append(args, "--", job.Script)
	args = append(args, job.Args...)
	return shell.Command{Name: "qsub", Args: args}
}

// Submit implements core.Submitter.
func (p *PBS) Submit(ctx context.Context, job model.JobSpec, dep *model.Dependency) (string, error) {
	cmd := p.SubmitCommand(job, dep)
	out, err := p.runner.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("qsub: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" || strings.ContainsAny(id, " \t\n") {
		return "", fmt.Errorf("qsub returned no job id (output %q)", id)
	}
	p.logger.DebugContext(ctx, "job submitted", "job_id", id, "name", job.Name, "command", cmd.String())
	return id, nil
}

// State implements core.QueueInspector. -x includes finished jobs kept in the server history.
func (p *PBS) State(ctx context.Context, jobID string) (model.QueueState, error) {
	out, err := p.runner.Run(ctx, shell.Command{Name: "qstat", Args: []string{"-x", "-f", "-F", "json", jobID}})
	if err != nil {
		return model.QueueStateUnknown, fmt.Errorf("qstat: %w", err)
	}
	v, err := searchJSON(out, p.stateExpr)
	if err != nil {
		return model.QueueStateUnknown, fmt.Errorf("qstat job %s: %w", jobID, err)
	}
	raw := stateString(v)
	if raw == "" {
		return model.QueueStateUnknown, nil
	}

	exit := 0
	if ev, err := searchJSON(out, pbsExitStatusExpr); err == nil {
		if f, ok := ev.(float64); ok {
			exit = int(f)
		}
	}
	return pbsState(raw, exit), nil
}
