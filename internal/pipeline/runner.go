package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/domain/model"
)

// StageError reports the stage that stopped a chunk. Later stages and months were not run.
type StageError struct {
	Month model.MonthKey
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("month %s stage %s: %v", e.Month, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// MonthSummary counts stage outcomes for one month.
type MonthSummary struct {
	Month   model.MonthKey
	Ran     int
	Skipped int
}

// Summary is the outcome of Run, in month order.
type Summary struct {
	Months   []MonthSummary
	Ran      int
	Skipped  int
	Duration time.Duration
}

// Options configures a Runner.
type Options struct {
	Stages   []Stage
	Pipeline config.PipelineConfig
	Shell    shell.Runner
	Logger   *slog.Logger
	// Output receives stage stdout; defaults to os.Stdout.
	Output io.Writer
}

// Runner executes the stage list for each month of a chunk.
type Runner struct {
	stages []compiledStage
	cfg    config.PipelineConfig
	shell  shell.Runner
	logger *slog.Logger
	out    io.Writer
}

// NewRunner validates and compiles the stage templates.
func NewRunner(opts Options) (*Runner, error) {
	stages, err := compile(opts.Stages)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, errors.New("at least one stage is required")
	}

	sh := opts.Shell
	if sh == nil {
		sh = shell.NewExecRunner()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Runner{
		stages: stages,
		cfg:    opts.Pipeline,
		shell:  sh,
		logger: logger.With("component", "chunk_runner"),
		out:    out,
	}, nil
}

func (r *Runner) vars(modelName string, m model.MonthKey) Vars {
	return Vars{
		Model:      modelName,
		Experiment: r.cfg.Experiment,
		Member:     r.cfg.Member,
		YearMonth:  m.String(),
		Year:       fmt.Sprintf("%04d", m.Year()),
		Month:      fmt.Sprintf("%02d", m.Month()),
		InputDir:   r.cfg.InputDir,
		OutputDir:  r.cfg.OutputDir,
		WorkDir:    r.cfg.WorkDir,
	}
}

// Run processes every month of chunk in order. A stage whose output already exists is skipped;
// the first failing stage stops the run and is returned as a *StageError together with the
// summary of the work completed so far.
func (r *Runner) Run(ctx context.Context, modelName string, chunk model.WorkChunk) (*Summary, error) {
	start := time.Now()
	sum := &Summary{}
	log := r.logger.With("model", modelName, "chunk", chunk.String())

	for _, dir := range []string{r.cfg.WorkDir, r.cfg.OutputDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return sum, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	for _, month := range chunk.Months() {
		ms := MonthSummary{Month: month}
		v := r.vars(modelName, month)

		for _, st := range r.stages {
			if err := ctx.Err(); err != nil {
				sum.add(ms)
				return sum, &StageError{Month: month, Stage: st.name, Err: err}
			}

			done, output, err := r.done(st, v)
			if err != nil {
				sum.add(ms)
				return sum, &StageError{Month: month, Stage: st.name, Err: err}
			}
			if done {
				log.InfoContext(ctx, "stage already done", "month", month, "stage", st.name, "output", output)
				ms.Skipped++
				continue
			}

			if err := r.runStage(ctx, st, v); err != nil {
				log.ErrorContext(ctx, "stage failed", "month", month, "stage", st.name, "error", err)
				sum.add(ms)
				return sum, &StageError{Month: month, Stage: st.name, Err: err}
			}
			log.InfoContext(ctx, "stage completed", "month", month, "stage", st.name)
			ms.Ran++
		}
		sum.add(ms)
	}

	sum.Duration = time.Since(start)
	log.InfoContext(ctx, "chunk completed", "months", len(sum.Months), "ran", sum.Ran, "skipped", sum.Skipped)
	return sum, nil
}

func (s *Summary) add(ms MonthSummary) {
	s.Months = append(s.Months, ms)
	s.Ran += ms.Ran
	s.Skipped += ms.Skipped
}

func (r *Runner) done(st compiledStage, v Vars) (bool, string, error) {
	if st.output == nil {
		return false, "", nil
	}
	path, err := render(st.output, v)
	if err != nil {
		return false, "", fmt.Errorf("render output: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return true, path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, path, fmt.Errorf("stat output: %w", err)
	}
	return false, path, nil
}

func (r *Runner) runStage(ctx context.Context, st compiledStage, v Vars) error {
	argv := make([]string, len(st.command))
	for i, t := range st.command {
		arg, err := render(t, v)
		if err != nil {
			return fmt.Errorf("render command: %w", err)
		}
		argv[i] = arg
	}

	_, err := r.shell.Run(ctx, shell.Command{
		Name:   argv[0],
		Args:   argv[1:],
		Env:    []string{"IVT_MODEL=" + v.Model, "IVT_YEARMONTH=" + v.YearMonth, "IVT_STAGE=" + st.name},
		Stdout: r.out,
	})
	return err
}
