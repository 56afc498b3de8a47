// Command ivt-submit plans a year/month range into chunks and submits them as a
// dependency-ordered chain of batch jobs.
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
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/bootstrap"
	"github.com/target/ivt-chain/internal/domain/chain"
	apperrors "github.com/target/ivt-chain/internal/errors"
	"github.com/target/ivt-chain/internal/service"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	usageLine = "Usage: ivt-submit [flags] start_year end_year [start_month] [end_month] model chunk_size\n" +
		"Flags must come before the positional arguments."
)

type app struct {
	cfg    config.AppConfig
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	// runner overrides the queue client process runner; nil uses os/exec.
	runner shell.Runner
}

type submitOptions struct {
	DryRun  bool
	Backend string
	Timeout time.Duration
	Request service.SubmitRequest
}

// usageError marks argument problems that exit with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func main() {
	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.SlogLevel())
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(exitFailure) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{cfg: cfg, logger: logger, stdout: os.Stdout, stderr: os.Stderr}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code) //nolint:forbidigo // exit status is the CLI contract
}

func (a *app) run(ctx context.Context, args []string) int {
	opts, err := parseSubmitArgs(args, a.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		_ = writef(a.stderr, "ivt-submit: %v\n%s\n", err, usageLine)
		return exitUsage
	}

	cfg := a.cfg
	if opts.Backend != "" {
		backend, perr := config.ParseQueueBackend(opts.Backend)
		if perr != nil {
			_ = writef(a.stderr, "ivt-submit: %v\n", perr)
			return exitUsage
		}
		cfg.Queue.Backend = backend
	}
	if opts.DryRun {
		cfg.Queue.Backend = config.QueueBackendDryRun
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	container, err := bootstrap.BuildChainService(ctx, bootstrap.ChainDeps{Config: &cfg, Logger: a.logger, Runner: a.runner})
	if err != nil {
		_ = writef(a.stderr, "ivt-submit: %v\n", err)
		return exitFailure
	}
	defer func() {
		if cerr := container.Close(); cerr != nil {
			a.logger.Warn("close resources failed", "error", cerr)
		}
	}()

	res, err := container.Service.Submit(ctx, opts.Request)
	if res != nil {
		if werr := printResult(a.stdout, res); werr != nil {
			a.logger.Warn("print result failed", "error", werr)
		}
	}
	if err != nil {
		_ = writef(a.stderr, "ivt-submit: %s\n", describeError(err, res))
		return exitFailure
	}
	return exitOK
}

func parseSubmitArgs(args []string, stderr io.Writer) (submitOptions, error) {
	fs := flag.NewFlagSet("ivt-submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_ = writef(stderr, "%s\n\nFlags:\n", usageLine)
		fs.PrintDefaults()
	}

	var opts submitOptions
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Plan and record submissions in memory without calling the batch queue")
	fs.StringVar(&opts.Backend, "backend", "", "Queue backend override: slurm, pbs or dry-run")
	fs.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Maximum time for the whole submission (0 disables)")

	if err := fs.Parse(args); err != nil {
		return submitOptions{}, err
	}

	for _, arg := range fs.Args() {
		if _, nerr := strconv.Atoi(arg); nerr != nil && strings.HasPrefix(arg, "-") {
			return submitOptions{}, &usageError{msg: fmt.Sprintf("flag %s must come before the positional arguments", arg)}
		}
	}

	req, err := parsePositional(fs.Args())
	if err != nil {
		return submitOptions{}, err
	}
	opts.Request = req
	return opts, nil
}

// parsePositional accepts 4, 5 or 6 positional arguments. Omitted months default to 1 and 12.
func parsePositional(pos []string) (service.SubmitRequest, error) {
	req := service.SubmitRequest{StartMonth: 1, EndMonth: 12}

	var names []string
	switch len(pos) {
	case 4:
		names = []string{"start_year", "end_year", "model", "chunk_size"}
	case 5:
		names = []string{"start_year", "end_year", "start_month", "model", "chunk_size"}
	case 6:
		names = []string{"start_year", "end_year", "start_month", "end_month", "model", "chunk_size"}
	default:
		return req, &usageError{msg: fmt.Sprintf("expected 4 to 6 arguments, got %d", len(pos))}
	}

	for i, name := range names {
		if name == "model" {
			req.Model = pos[i]
			continue
		}
		n, err := strconv.Atoi(pos[i])
		if err != nil {
			return req, &usageError{msg: fmt.Sprintf("%s must be an integer, got %q", name, pos[i])}
		}
		switch name {
		case "start_year":
			req.StartYear = n
		case "end_year":
			req.EndYear = n
		case "start_month":
			req.StartMonth = n
		case "end_month":
			req.EndMonth = n
		case "chunk_size":
			req.ChunkSize = n
		}
	}
	return req, nil
}

func describeError(err error, res *service.SubmitResult) string {
	var subErr *chain.SubmissionError
	switch {
	case errors.As(err, &subErr):
		queued := 0
		if res != nil {
			queued = len(res.Jobs)
		}
		return fmt.Sprintf("submission failed at %v; %d job(s) remain queued ahead of it", err, queued)
	case apperrors.IsInvalidRange(err), apperrors.IsValidation(err):
		if field := apperrors.GetField(err); field != "" {
			return fmt.Sprintf("invalid %s: %v", field, err)
		}
		return err.Error()
	default:
		return err.Error()
	}
}

func printResult(w io.Writer, res *service.SubmitResult) error {
	if err := writef(w, "run %s (%s, %s)\n", res.Run.ID, res.Run.Model, res.Run.Backend); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "CHUNK\tMONTHS\tJOB ID\tDEPENDS ON\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, c := range res.Chunks {
		jobID, dep := "-", "-"
		if i < len(res.Jobs) {
			jobID = res.Jobs[i].JobID
			if res.Jobs[i].DependsOn != nil {
				dep = *res.Jobs[i].DependsOn
			}
		} else {
			jobID = "(not submitted)"
		}
		if err := writef(tw, "%d\t%s\t%s\t%s\n", i+1, c.String(), jobID, dep); err != nil {
			return fmt.Errorf("write chunk row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
