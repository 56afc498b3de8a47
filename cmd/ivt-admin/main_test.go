package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/bootstrap"
	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/data"
	"github.com/target/ivt-chain/internal/domain/model"
	"github.com/target/ivt-chain/internal/migrate"
)

type sacctRunner struct {
	states map[string]string
}

func (r *sacctRunner) Run(_ context.Context, c shell.Command) ([]byte, error) {
	if c.Name != "sacct" || len(c.Args) < 2 {
		return nil, &shell.CommandError{Command: c.String(), ExitCode: 1, Stderr: "unexpected command"}
	}
	state, ok := r.states[c.Args[1]]
	if !ok {
		return nil, &shell.CommandError{Command: c.String(), ExitCode: 1, Stderr: "invalid job id"}
	}
	return []byte(`{"jobs":[{"state":{"current":["` + state + `"]}}]}`), nil
}

func newTestContext(t *testing.T) (*commandContext, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.AppConfig{
			Queue: config.QueueConfig{
				Backend:           config.QueueBackendSlurm,
				Script:            "ivt-chunk",
				Args:              "{{.Model}} {{.StartYear}} {{.EndYear}} {{.StartMonth}} {{.EndMonth}}",
				JobName:           "ivt-{{.Model}}-{{.StartYear}}-{{.EndYear}}",
				StatusConcurrency: 2,
			},
			Journal: config.JournalConfig{
				Driver:     config.JournalDriverSQLite,
				SQLitePath: filepath.Join(t.TempDir(), "journal.db"),
			},
		},
		Out:    &out,
		Runner: &sacctRunner{states: map[string]string{"1001": "COMPLETED", "1002": "RUNNING"}},
		Now:    func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}, &out
}

func seedChain(t *testing.T, cmdCtx *commandContext) string {
	t.Helper()
	ctx := context.Background()
	db, err := sql.Open("sqlite3", bootstrap.SQLiteDSN(cmdCtx.Config.Journal.SQLitePath))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, migrate.Run(ctx, db))

	repo := data.NewChainRepo(db)
	run, err := repo.CreateRun(ctx, core.CreateChainRunParams{
		Model: "CanESM2", Backend: "slurm", StartYear: 1985, EndYear: 1990, StartMonth: 1, EndMonth: 12, ChunkSize: 3,
	})
	require.NoError(t, err)

	first := "1001"
	jobs := []model.SubmittedJob{
		{JobID: "1001", Chunk: model.WorkChunk{StartYear: 1985, EndYear: 1987, StartMonth: 1, EndMonth: 12}, SubmittedAt: time.Now().UTC()},
		{JobID: "1002", Chunk: model.WorkChunk{StartYear: 1988, EndYear: 1990, StartMonth: 1, EndMonth: 12}, DependsOn: &first, SubmittedAt: time.Now().UTC()},
	}
	for i, j := range jobs {
		require.NoError(t, repo.RecordJob(ctx, run.ID, i, j))
	}
	require.NoError(t, repo.FinishRun(ctx, run.ID, model.ChainStatusSubmitted, ""))
	return run.ID
}

func TestCommandsTable(t *testing.T) {
	for _, name := range []string{"migrate", "plan", "list-chains", "show-chain", "level-bounds"} {
		c, ok := commands()[name]
		require.True(t, ok, name)
		assert.Equal(t, name, c.name)
		assert.NotEmpty(t, c.description)
	}

	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	assert.Contains(t, buf.String(), "Usage: ivt-admin <command> [flags]")
	assert.Less(t, strings.Index(buf.String(), "level-bounds"), strings.Index(buf.String(), "show-chain"))
}

func TestRunMigrationsSQLite(t *testing.T) {
	cmdCtx, _ := newTestContext(t)
	require.NoError(t, runMigrations(cmdCtx, []string{"--timeout", "30s"}))

	db, err := sql.Open("sqlite3", bootstrap.SQLiteDSN(cmdCtx.Config.Journal.SQLitePath))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	applied, err := migrate.Applied(context.Background(), db)
	require.NoError(t, err)
	assert.NotEmpty(t, applied)
}

func TestRunMigrationsErrors(t *testing.T) {
	cmdCtx, _ := newTestContext(t)
	require.ErrorContains(t, runMigrations(cmdCtx, []string{"--timeout", "0s"}), "--timeout must be greater than zero")

	cmdCtx.Config.Journal.Driver = config.JournalDriverNone
	require.ErrorContains(t, runMigrations(cmdCtx, nil), "journal is disabled")
}

func TestRunPlan(t *testing.T) {
	cmdCtx, out := newTestContext(t)
	require.NoError(t, runPlan(cmdCtx, []string{"2013", "2016", "6", "3", "CanESM2", "2"}))

	got := out.String()
	assert.Contains(t, got, "CHUNK")
	assert.Regexp(t, `1\s+2013-06\.\.2014-12\s+ivt-CanESM2-2013-2014\s+ivt-chunk CanESM2 2013 2014 6 12`, got)
	assert.Regexp(t, `2\s+2015-01\.\.2016-03\s+ivt-CanESM2-2015-2016\s+ivt-chunk CanESM2 2015 2016 1 3`, got)
}

func TestRunPlanErrors(t *testing.T) {
	cmdCtx, _ := newTestContext(t)
	require.ErrorContains(t, runPlan(cmdCtx, []string{"2013", "CanESM2", "2"}), "got 3")
	require.ErrorContains(t, runPlan(cmdCtx, []string{"2013", "20x6", "CanESM2", "2"}), `"20x6"`)
	require.ErrorContains(t, runPlan(cmdCtx, []string{"2016", "2013", "CanESM2", "2"}), "start year 2016 is after end year 2013")
}

func TestRunListChains(t *testing.T) {
	cmdCtx, out := newTestContext(t)
	id := seedChain(t, cmdCtx)

	require.NoError(t, runListChains(cmdCtx, []string{"--model", "CanESM2", "--status", "submitted"}))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "1985-01..1990-12")

	out.Reset()
	require.NoError(t, runListChains(cmdCtx, []string{"--status", "failed"}))
	assert.Equal(t, "no chains found\n", out.String())

	require.Error(t, runListChains(cmdCtx, []string{"--status", "bogus"}))
	require.ErrorContains(t, runListChains(cmdCtx, []string{"--limit", "0"}), "--limit")
}

func TestRunShowChain(t *testing.T) {
	cmdCtx, out := newTestContext(t)
	id := seedChain(t, cmdCtx)

	require.NoError(t, runShowChain(cmdCtx, []string{"--id", id}))
	got := out.String()
	assert.Contains(t, got, "Model:   CanESM2")
	assert.Regexp(t, `2\s+1988-01\.\.1990-12\s+1002\s+1001`, got)
	assert.NotContains(t, got, "STATE")

	out.Reset()
	require.NoError(t, runShowChain(cmdCtx, []string{"--id", id, "--status"}))
	got = out.String()
	assert.Contains(t, got, "STATE")
	assert.Regexp(t, `1001\s+-\s+\S+\s+completed`, got)
	assert.Regexp(t, `1002\s+1001\s+\S+\s+running`, got)
}

func TestRunShowChainErrors(t *testing.T) {
	cmdCtx, _ := newTestContext(t)
	require.ErrorContains(t, runShowChain(cmdCtx, nil), "--id is required")

	seedChain(t, cmdCtx)
	require.Error(t, runShowChain(cmdCtx, []string{"--id", "missing"}))
}

func TestRunLevelBounds(t *testing.T) {
	cmdCtx, out := newTestContext(t)

	require.NoError(t, runLevelBounds(cmdCtx, nil))
	assert.Contains(t, out.String(), "netcdf level_bounds {")
	assert.Contains(t, out.String(), "Created by ivt-admin level-bounds on 2026-03-01")

	out.Reset()
	require.NoError(t, runLevelBounds(cmdCtx, []string{"--check"}))
	assert.Contains(t, out.String(), "plev: 100000.0 | midpoint:  98787.5 | diff: 1212.5")

	path := filepath.Join(t.TempDir(), "level_bounds.cdl")
	out.Reset()
	require.NoError(t, runLevelBounds(cmdCtx, []string{"--out", path}))
	assert.Empty(t, out.String())
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "plev_bounds =")

	require.Error(t, runLevelBounds(cmdCtx, []string{"extra"}))
}
