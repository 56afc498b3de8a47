package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/queue"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/chain"
)

// NewQueue builds the batch queue adapter named by cfg.Backend.
//
//nolint:ireturn // the backend is chosen at runtime.
func NewQueue(cfg config.QueueConfig, runner shell.Runner, logger *slog.Logger) (core.Queue, error) {
	if runner == nil {
		runner = shell.NewExecRunner()
	}

	switch cfg.Backend {
	case config.QueueBackendSlurm:
		q, err := queue.NewSlurm(queue.SlurmOptions{
			Runner:    runner,
			ExtraArgs: cfg.ExtraArgs,
			StateExpr: cfg.StateExpr,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create slurm queue: %w", err)
		}
		return q, nil
	case config.QueueBackendPBS:
		q, err := queue.NewPBS(queue.PBSOptions{
			Runner:    runner,
			ExtraArgs: cfg.ExtraArgs,
			StateExpr: cfg.StateExpr,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create pbs queue: %w", err)
		}
		return q, nil
	case config.QueueBackendDryRun:
		return queue.NewDryRun(), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Backend)
	}
}

// NewJobTemplate builds the per-chunk job template from queue configuration.
func NewJobTemplate(cfg config.QueueConfig) (*chain.JobTemplate, error) {
	tmpl, err := chain.NewJobTemplate(cfg.Script, cfg.JobName, cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("job template: %w", err)
	}
	return tmpl, nil
}
