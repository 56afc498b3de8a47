package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/queue"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/domain/model"
	"github.com/target/ivt-chain/internal/migrate"
	"github.com/target/ivt-chain/internal/observability/statsd"
	"github.com/target/ivt-chain/internal/service"
)

type seqRunner struct {
	mu    sync.Mutex
	next  int
	calls []shell.Command
}

func (r *seqRunner) Run(_ context.Context, c shell.Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	r.next++
	return []byte(fmt.Sprintf("%d;cluster\n", 1000+r.next)), nil
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return &cfg
}

func TestInitLoggerTo(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := InitLoggerTo(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", "model", "CanESM2")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "CanESM2", line["model"])
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "dryrun")
	t.Setenv("JOURNAL_DRIVER", "none")

	cfg := testConfig(t)
	assert.Equal(t, config.QueueBackendDryRun, cfg.Queue.Backend)
	assert.False(t, cfg.Journal.Enabled())
}

func TestDSNs(t *testing.T) {
	assert.Equal(t, "file:/tmp/j.db?_foreign_keys=on&_busy_timeout=5000", SQLiteDSN("/tmp/j.db"))
	assert.Equal(t, "file:j.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000", SQLiteDSN("j.db?mode=rwc"))

	dsn := PostgresDSN(config.DBConfig{Host: "db", Port: 5432, User: "ivt", Password: "p@ss/word", Name: "ivt", SSLMode: "disable"})
	assert.Equal(t, "postgres://ivt:p%40ss%2Fword@db:5432/ivt?sslmode=disable", dsn)
}

func TestConnectJournalDisabled(t *testing.T) {
	db, err := ConnectJournal(context.Background(), DatabaseConfig{Journal: config.JournalConfig{Driver: config.JournalDriverNone}})
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestOpenJournalSQLiteMigrates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal = config.JournalConfig{Driver: config.JournalDriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "journal.db")}

	db, err := OpenJournal(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	applied, err := migrate.Applied(context.Background(), db)
	require.NoError(t, err)
	files, err := migrate.Files()
	require.NoError(t, err)
	assert.Len(t, applied, len(files))
}

func TestConnectRedisDisabled(t *testing.T) {
	client, err := ConnectRedis(context.Background(), DatabaseConfig{RedisConfig: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewDirectClientRequiresURI(t *testing.T) {
	_, _, err := newDirectClient(config.RedisConfig{URI: " "})
	require.Error(t, err)

	client, addr, err := newDirectClient(config.RedisConfig{URI: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.Equal(t, "cache:6380", addr)
}

func TestNewQueue(t *testing.T) {
	runner := &seqRunner{}

	q, err := NewQueue(config.QueueConfig{Backend: config.QueueBackendSlurm}, runner, nil)
	require.NoError(t, err)
	assert.IsType(t, &queue.Slurm{}, q)

	q, err = NewQueue(config.QueueConfig{Backend: config.QueueBackendPBS}, runner, nil)
	require.NoError(t, err)
	assert.IsType(t, &queue.PBS{}, q)

	q, err = NewQueue(config.QueueConfig{Backend: config.QueueBackendDryRun}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &queue.DryRun{}, q)

	_, err = NewQueue(config.QueueConfig{Backend: config.QueueBackendSlurm, StateExpr: "jobs[0"}, runner, nil)
	require.Error(t, err)

	_, err = NewQueue(config.QueueConfig{Backend: "condor"}, runner, nil)
	require.Error(t, err)
}

func TestNewJobTemplateRequiresScript(t *testing.T) {
	_, err := NewJobTemplate(config.QueueConfig{Script: ""})
	require.Error(t, err)
}

func TestBuildObservabilityDisabled(t *testing.T) {
	obs := BuildObservability(nil, config.ObservabilityConfig{}, config.QueueBackendDryRun)
	assert.NotNil(t, obs.MetricsSink)
	assert.False(t, obs.FailureNotifier.Enabled())
	require.NoError(t, obs.Close())
}

func TestBuildObservabilityWithSinks(t *testing.T) {
	obs := BuildObservability(nil, config.ObservabilityConfig{
		Notifications: config.ObservabilityNotificationsConfig{
			Enabled:   true,
			Slack:     config.SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.slack.test/x"},
			PagerDuty: config.PagerDutyNotificationConfig{Enabled: true, RoutingKey: "rk"},
		},
	}, config.QueueBackendSlurm)
	assert.True(t, obs.FailureNotifier.Enabled())
}

func TestBuildObservabilityStatsdClient(t *testing.T) {
	obs := BuildObservability(nil, config.ObservabilityConfig{
		Metrics: config.ObservabilityMetricsConfig{
			Enabled:       true,
			StatsdAddress: "127.0.0.1:8125",
			Prefix:        "ivt",
			Site:          "cheyenne",
		},
	}, config.QueueBackendPBS)
	_, isClient := obs.MetricsSink.(*statsd.Client)
	assert.True(t, isClient)
	require.NoError(t, obs.Close())
}

func TestBuildChainServiceDryRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Backend = config.QueueBackendDryRun
	cfg.Journal.Driver = config.JournalDriverSQLite
	cfg.Journal.SQLitePath = filepath.Join(t.TempDir(), "unused.db")

	c, err := BuildChainService(context.Background(), ChainDeps{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)

	res, err := c.Service.Submit(context.Background(), service.SubmitRequest{
		Model: "CanESM2", StartYear: 1985, EndYear: 1990, StartMonth: 1, EndMonth: 12, ChunkSize: 3,
	})
	require.NoError(t, err)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, "dry-1", res.Jobs[0].JobID)
	assert.Equal(t, "dry-2", res.Jobs[1].JobID)
}

func TestBuildChainServiceSlurmJournaled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.Backend = config.QueueBackendSlurm
	cfg.Journal = config.JournalConfig{Driver: config.JournalDriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "journal.db")}
	cfg.Redis.Enabled = false

	runner := &seqRunner{}
	c, err := BuildChainService(context.Background(), ChainDeps{Config: cfg, Runner: runner})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NotNil(t, c.DB)

	res, err := c.Service.Submit(context.Background(), service.SubmitRequest{
		Model: "CanESM2", StartYear: 2013, EndYear: 2016, StartMonth: 6, EndMonth: 3, ChunkSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, "1001", res.Jobs[0].JobID)
	assert.Equal(t, "1002", res.Jobs[1].JobID)
	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[1].Args, "--dependency=afterok:1001")

	report, err := c.Service.Get(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChainStatusSubmitted, report.Run.Status)
	require.Len(t, report.Jobs, 2)
	assert.Equal(t, model.WorkChunk{StartYear: 2015, EndYear: 2016, StartMonth: 1, EndMonth: 3}, report.Jobs[1].Job.Chunk)
}
