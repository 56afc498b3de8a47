// Command ivt-chunk runs the per-month pipeline stages for one chunk. It is the script each
// batch job in a chain executes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/bootstrap"
	"github.com/target/ivt-chain/internal/domain/model"
	"github.com/target/ivt-chain/internal/domain/plan"
	apperrors "github.com/target/ivt-chain/internal/errors"
	"github.com/target/ivt-chain/internal/pipeline"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	usageLine = "Usage: ivt-chunk [flags] model start_year end_year start_month end_month\n" +
		"Flags must come before the positional arguments."
)

type app struct {
	cfg    config.PipelineConfig
	logger *slog.Logger
	shell  shell.Runner
	stdout io.Writer
	stderr io.Writer
}

type chunkOptions struct {
	StagesFile string
	Model      string
	Chunk      model.WorkChunk
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func main() {
	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.SlogLevel())
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(exitFailure) //nolint:forbidigo // CLI must signal configuration load failure to the batch queue
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{cfg: cfg.Pipeline, logger: logger, stdout: os.Stdout, stderr: os.Stderr}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code) //nolint:forbidigo // a non-zero exit releases afterok dependents as failed
}

func (a *app) run(ctx context.Context, args []string) int {
	opts, err := parseChunkArgs(args, a.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		_ = writef(a.stderr, "ivt-chunk: %v\n%s\n", err, usageLine)
		return exitUsage
	}

	cfg := a.cfg
	if opts.StagesFile != "" {
		cfg.StagesFile = opts.StagesFile
	}

	stages, err := pipeline.StagesFromConfig(cfg)
	if err != nil {
		_ = writef(a.stderr, "ivt-chunk: %v\n", err)
		return exitFailure
	}
	runner, err := pipeline.NewRunner(pipeline.Options{
		Stages:   stages,
		Pipeline: cfg,
		Shell:    a.shell,
		Logger:   a.logger,
		Output:   a.stdout,
	})
	if err != nil {
		_ = writef(a.stderr, "ivt-chunk: %v\n", err)
		return exitFailure
	}

	sum, err := runner.Run(ctx, opts.Model, opts.Chunk)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			_ = writef(a.stderr, "ivt-chunk: %s failed at %s: %v\n", opts.Chunk, stageErr.Month, err)
		} else {
			_ = writef(a.stderr, "ivt-chunk: %v\n", err)
		}
		return exitFailure
	}

	_ = writef(a.stdout, "chunk %s done: %d month(s), %d stage(s) ran, %d skipped\n",
		opts.Chunk, len(sum.Months), sum.Ran, sum.Skipped)
	return exitOK
}

func parseChunkArgs(args []string, stderr io.Writer) (chunkOptions, error) {
	fs := flag.NewFlagSet("ivt-chunk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_ = writef(stderr, "%s\n\nFlags:\n", usageLine)
		fs.PrintDefaults()
	}

	var opts chunkOptions
	fs.StringVar(&opts.StagesFile, "stages", "", "YAML stage list (overrides PIPELINE_STAGES_FILE)")
	if err := fs.Parse(args); err != nil {
		return chunkOptions{}, err
	}

	pos := fs.Args()
	if len(pos) != 5 {
		return chunkOptions{}, &usageError{msg: fmt.Sprintf("expected 5 arguments, got %d", len(pos))}
	}
	opts.Model = pos[0]
	if opts.Model == "" {
		return chunkOptions{}, &usageError{msg: "model must not be empty"}
	}

	names := []string{"start_year", "end_year", "start_month", "end_month"}
	vals := make([]int, len(names))
	for i, name := range names {
		n, err := strconv.Atoi(pos[i+1])
		if err != nil {
			return chunkOptions{}, &usageError{msg: fmt.Sprintf("%s must be an integer, got %q", name, pos[i+1])}
		}
		vals[i] = n
	}
	opts.Chunk = model.WorkChunk{StartYear: vals[0], EndYear: vals[1], StartMonth: vals[2], EndMonth: vals[3]}

	// A chunk is valid exactly when it is a valid single-chunk plan.
	req := plan.Request{
		StartYear:  opts.Chunk.StartYear,
		EndYear:    opts.Chunk.EndYear,
		StartMonth: opts.Chunk.StartMonth,
		EndMonth:   opts.Chunk.EndMonth,
		ChunkSize:  max(opts.Chunk.EndYear-opts.Chunk.StartYear+1, 1),
	}
	if err := req.Validate(); err != nil {
		return chunkOptions{}, &usageError{msg: fmt.Sprintf("invalid %s: %v", apperrors.GetField(err), err)}
	}
	return opts, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
