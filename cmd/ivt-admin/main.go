// Command ivt-admin provides operator utilities: journal migrations, chunk planning,
// chain inspection and the pressure level bounds file.
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
	"sort"
	"syscall"
	"time"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/bootstrap"
	"github.com/target/ivt-chain/internal/levels"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	// Runner overrides the queue client process runner; nil uses os/exec.
	Runner shell.Runner
	// Now stamps generated files; nil uses time.Now.
	Now func() time.Time
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			slog.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.SlogLevel())
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	stop()
	if runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			os.Exit(2) //nolint:forbidigo // -h prints command usage and exits like a usage error
		}
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Apply submission journal migrations",
			run:         runMigrations,
		},
		"plan": {
			name:        "plan",
			description: "Print the chunks and job invocations a submission would create",
			run:         runPlan,
		},
		"list-chains": {
			name:        "list-chains",
			description: "List journaled chain submissions",
			run:         runListChains,
		},
		"show-chain": {
			name:        "show-chain",
			description: "Show the jobs of a journaled chain, optionally with queue state",
			run:         runShowChain,
		},
		"level-bounds": {
			name:        "level-bounds",
			description: "Write the pressure level bounds CDL or check level midpoints",
			run:         runLevelBounds,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: ivt-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-24s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectJournal(ctx, bootstrap.DatabaseConfig{
		Journal:  cmdCtx.Config.Journal,
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect journal: %w", err)
	}
	if db == nil {
		return errors.New("journal is disabled (JOURNAL_DRIVER=none)")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("journal close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running journal migrations", "driver", cmdCtx.Config.Journal.Driver)

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

type levelBoundsOptions struct {
	Out   string
	Check bool
}

func runLevelBounds(cmdCtx *commandContext, args []string) error {
	opts, err := parseLevelBoundsFlags(args)
	if err != nil {
		return err
	}

	table := levels.Default()
	if opts.Check {
		if err := table.Validate(); err != nil {
			return err
		}
		return levels.WriteCheck(cmdCtx.Out, table.Check())
	}

	now := time.Now
	if cmdCtx.Now != nil {
		now = cmdCtx.Now
	}

	if opts.Out == "" || opts.Out == "-" {
		return table.WriteCDL(cmdCtx.Out, now())
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.Out, err)
	}
	if err := table.WriteCDL(f, now()); err != nil {
		return errors.Join(fmt.Errorf("write %s: %w", opts.Out, err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", opts.Out, err)
	}
	cmdCtx.Logger.Info("level bounds written", "path", opts.Out, "hint", "ncgen -3 -o level_bounds.nc "+opts.Out)
	return nil
}

func parseLevelBoundsFlags(args []string) (levelBoundsOptions, error) {
	fs := flag.NewFlagSet("level-bounds", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts levelBoundsOptions
	fs.StringVar(&opts.Out, "out", "", "CDL output file (default stdout)")
	fs.BoolVar(&opts.Check, "check", false, "Print each level with its bounds midpoint instead of CDL")

	if err := fs.Parse(args); err != nil {
		return levelBoundsOptions{}, err
	}
	if fs.NArg() > 0 {
		return levelBoundsOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
