package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/domain/model"
)

type recordingShell struct {
	calls  []shell.Command
	failOn int
}

func (r *recordingShell) Run(_ context.Context, c shell.Command) ([]byte, error) {
	r.calls = append(r.calls, c)
	if r.failOn > 0 && len(r.calls) == r.failOn {
		return nil, &shell.CommandError{Command: c.String(), ExitCode: 3}
	}
	return nil, nil
}

func newTestApp(t *testing.T, sh shell.Runner) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	var stdout, stderr bytes.Buffer
	return &app{
		cfg: config.PipelineConfig{
			Experiment: "historical",
			Member:     "r1i1p1",
			InputDir:   filepath.Join(root, "in"),
			OutputDir:  filepath.Join(root, "out"),
			WorkDir:    filepath.Join(root, "work"),
			Command:    "ivt-month.sh",
			DoneOutput: "{{.OutputDir}}/IVT_{{.Model}}_{{.YearMonth}}.nc",
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		shell:  sh,
		stdout: &stdout,
		stderr: &stderr,
	}, &stdout, &stderr
}

func TestRunProcessesEveryMonth(t *testing.T) {
	sh := &recordingShell{}
	a, stdout, stderr := newTestApp(t, sh)

	code := a.run(context.Background(), []string{"CanESM2", "2014", "2015", "11", "2"})
	require.Equal(t, exitOK, code, stderr.String())

	require.Len(t, sh.calls, 4)
	assert.Equal(t, "ivt-month.sh", sh.calls[0].Name)
	assert.Equal(t, "201411", sh.calls[0].Args[3])
	assert.Equal(t, "201502", sh.calls[3].Args[3])
	assert.Contains(t, stdout.String(), "4 month(s), 4 stage(s) ran, 0 skipped")
}

func TestRunSkipsFinishedMonths(t *testing.T) {
	sh := &recordingShell{}
	a, stdout, stderr := newTestApp(t, sh)
	require.NoError(t, os.MkdirAll(a.cfg.OutputDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(a.cfg.OutputDir, "IVT_CanESM2_201412.nc"), nil, 0o600))

	code := a.run(context.Background(), []string{"CanESM2", "2014", "2014", "11", "12"})
	require.Equal(t, exitOK, code, stderr.String())
	require.Len(t, sh.calls, 1)
	assert.Equal(t, "201411", sh.calls[0].Args[3])
	assert.Contains(t, stdout.String(), "1 stage(s) ran, 1 skipped")
}

func TestRunStageFailureExitsOne(t *testing.T) {
	sh := &recordingShell{failOn: 2}
	a, _, stderr := newTestApp(t, sh)

	code := a.run(context.Background(), []string{"CanESM2", "2014", "2014", "1", "6"})
	assert.Equal(t, exitFailure, code)
	assert.Len(t, sh.calls, 2)
	assert.Contains(t, stderr.String(), "failed at 201402")
}

func TestRunMissingStagesFile(t *testing.T) {
	a, _, stderr := newTestApp(t, &recordingShell{})

	code := a.run(context.Background(), []string{"--stages", filepath.Join(t.TempDir(), "nope.yaml"),
		"CanESM2", "2014", "2014", "1", "6"})
	assert.Equal(t, exitFailure, code)
	assert.NotEmpty(t, stderr.String())
}

func TestParseChunkArgs(t *testing.T) {
	opts, err := parseChunkArgs([]string{"MIROC5", "1988", "1990", "1", "12"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "MIROC5", opts.Model)
	assert.Equal(t, model.WorkChunk{StartYear: 1988, EndYear: 1990, StartMonth: 1, EndMonth: 12}, opts.Chunk)

	tests := map[string]struct {
		args []string
		want string
	}{
		"count":       {[]string{"MIROC5", "1988", "1990"}, "expected 5 arguments, got 3"},
		"integer":     {[]string{"MIROC5", "1988", "199O", "1", "12"}, "end_year must be an integer"},
		"month range": {[]string{"MIROC5", "1988", "1990", "0", "12"}, "invalid start_month"},
		"years":       {[]string{"MIROC5", "1990", "1988", "1", "12"}, "invalid start_year"},
		"empty model": {[]string{"", "1988", "1990", "1", "12"}, "model must not be empty"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseChunkArgs(tt.args, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunUsageExitsTwo(t *testing.T) {
	a, _, stderr := newTestApp(t, &recordingShell{})
	code := a.run(context.Background(), []string{"CanESM2", "2014"})
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), usageLine)
}
