package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/chain"
	"github.com/target/ivt-chain/internal/domain/model"
	apperrors "github.com/target/ivt-chain/internal/errors"
	"github.com/target/ivt-chain/internal/mocks"
	"github.com/target/ivt-chain/internal/observability/notify"
	"github.com/target/ivt-chain/internal/observability/statsd"
)

type captureNotifier struct {
	payloads []notify.ChainFailurePayload
}

func (c *captureNotifier) NotifyChainFailure(_ context.Context, p notify.ChainFailurePayload) {
	c.payloads = append(c.payloads, p)
}

type chainFixture struct {
	sub      *mocks.MockSubmitter
	insp     *mocks.MockQueueInspector
	journal  *mocks.MockChainRepository
	locker   *mocks.MockLocker
	metrics  *statsd.Recorder
	notifier *captureNotifier
	svc      *ChainService
}

func newChainFixture(t *testing.T, withStorage bool) *chainFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &chainFixture{
		sub:      mocks.NewMockSubmitter(ctrl),
		insp:     mocks.NewMockQueueInspector(ctrl),
		metrics:  &statsd.Recorder{},
		notifier: &captureNotifier{},
	}

	tmpl, err := chain.NewJobTemplate("ivt-chunk", "", "")
	require.NoError(t, err)

	opts := ChainServiceOptions{
		Queue:    ChainQueue{Submitter: f.sub, Inspector: f.insp, Backend: "slurm"},
		Template: tmpl,
		Telemetry: ChainTelemetry{
			Metrics:  f.metrics,
			Notifier: f.notifier,
		},
		StatusConcurrency: 2,
	}
	if withStorage {
		f.journal = mocks.NewMockChainRepository(ctrl)
		f.locker = mocks.NewMockLocker(ctrl)
		opts.Storage = ChainStorage{Journal: f.journal, Locker: f.locker, LockTTL: time.Minute}
	}

	f.svc, err = NewChainService(opts)
	require.NoError(t, err)
	return f
}

func sampleRun() *model.ChainRun {
	return &model.ChainRun{
		ID:         "run-1",
		Model:      "CanESM2",
		Backend:    "slurm",
		Status:     model.ChainStatusSubmitting,
		StartYear:  1985,
		EndYear:    1990,
		StartMonth: 1,
		EndMonth:   12,
		ChunkSize:  3,
	}
}

func sampleRequest() SubmitRequest {
	return SubmitRequest{Model: "CanESM2", StartYear: 1985, EndYear: 1990, StartMonth: 1, EndMonth: 12, ChunkSize: 3}
}

func TestNewChainService_RequiresSubmitterAndTemplate(t *testing.T) {
	_, err := NewChainService(ChainServiceOptions{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewChainService(ChainServiceOptions{Queue: ChainQueue{Submitter: mocks.NewMockSubmitter(ctrl)}})
	require.Error(t, err)
}

func TestChainService_Submit_Success(t *testing.T) {
	f := newChainFixture(t, true)
	ctx := context.Background()

	gomock.InOrder(
		f.locker.EXPECT().Acquire(gomock.Any(), "submit:CanESM2", time.Minute).Return("tok", true, nil),
		f.journal.EXPECT().CreateRun(gomock.Any(), core.CreateChainRunParams{
			Model: "CanESM2", Backend: "slurm", StartYear: 1985, EndYear: 1990, StartMonth: 1, EndMonth: 12, ChunkSize: 3,
		}).Return(sampleRun(), nil),
		f.sub.EXPECT().Submit(gomock.Any(), gomock.Any(), (*model.Dependency)(nil)).Return("1001", nil),
		f.journal.EXPECT().RecordJob(gomock.Any(), "run-1", 0, gomock.Any()).Return(nil),
		f.sub.EXPECT().Submit(gomock.Any(), gomock.Any(), &model.Dependency{JobID: "1001", Condition: model.DependencyAfterOK}).
			Return("1002", nil),
		f.journal.EXPECT().RecordJob(gomock.Any(), "run-1", 1, gomock.Any()).Return(nil),
		f.journal.EXPECT().FinishRun(gomock.Any(), "run-1", model.ChainStatusSubmitted, "").Return(nil),
		f.locker.EXPECT().Release(gomock.Any(), "submit:CanESM2", "tok").Return(true, nil),
	)

	res, err := f.svc.Submit(ctx, sampleRequest())
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, model.ChainStatusSubmitted, res.Run.Status)
	assert.Nil(t, res.Run.LastError)
	assert.Equal(t, "1001", *res.Jobs[1].DependsOn)

	submit, ok := f.metrics.Find("chain.submit")
	require.True(t, ok)
	assert.Equal(t, "success", submit.Tags["result"])
	jobs, ok := f.metrics.Find("chain.jobs")
	require.True(t, ok)
	assert.Equal(t, float64(2), jobs.Value)
	assert.Empty(t, f.notifier.payloads)
}

func TestChainService_Submit_FailureTruncatesChainAndNotifies(t *testing.T) {
	f := newChainFixture(t, true)
	ctx := context.Background()
	req := SubmitRequest{Model: "CanESM2", StartYear: 1985, EndYear: 1993, StartMonth: 1, EndMonth: 12, ChunkSize: 3}

	f.locker.EXPECT().Acquire(gomock.Any(), "submit:CanESM2", time.Minute).Return("tok", true, nil)
	f.journal.EXPECT().CreateRun(gomock.Any(), gomock.Any()).Return(sampleRun(), nil)
	gomock.InOrder(
		f.sub.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("1001", nil),
		f.sub.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("sbatch: invalid account")),
	)
	f.journal.EXPECT().RecordJob(gomock.Any(), "run-1", 0, gomock.Any()).Return(nil)
	f.journal.EXPECT().FinishRun(gomock.Any(), "run-1", model.ChainStatusFailed, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ model.ChainStatus, lastErr string) error {
			assert.Contains(t, lastErr, "chunk 2 (1988-01..1990-12)")
			return nil
		})
	f.locker.EXPECT().Release(gomock.Any(), "submit:CanESM2", "tok").Return(true, nil)

	res, err := f.svc.Submit(ctx, req)
	require.Error(t, err)
	assert.True(t, apperrors.IsSubmission(err))

	var subErr *chain.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 1, subErr.Index)

	require.NotNil(t, res)
	require.Len(t, res.Chunks, 3)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, model.ChainStatusFailed, res.Run.Status)
	require.NotNil(t, res.Run.LastError)

	require.Len(t, f.notifier.payloads, 1)
	p := f.notifier.payloads[0]
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, 2, p.ChunkIndex)
	assert.Equal(t, "1988-01..1990-12", p.Chunk)
	assert.Equal(t, 1, p.JobsSubmitted)
	assert.Equal(t, "1001", p.LastJobID)
	assert.Equal(t, "errors_errorstring", p.ErrorClass)

	submit, ok := f.metrics.Find("chain.submit")
	require.True(t, ok)
	assert.Equal(t, "error", submit.Tags["result"])
}

func TestChainService_Submit_LockHeld(t *testing.T) {
	f := newChainFixture(t, true)

	f.locker.EXPECT().Acquire(gomock.Any(), "submit:CanESM2", time.Minute).Return("", false, nil)

	res, err := f.svc.Submit(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsConflict(err))

	submit, ok := f.metrics.Find("chain.submit")
	require.True(t, ok)
	assert.Equal(t, "locked", submit.Tags["result"])
}

func TestChainService_Submit_LockError(t *testing.T) {
	f := newChainFixture(t, true)

	f.locker.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return("", false, errors.New("connection refused"))

	_, err := f.svc.Submit(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire submission lock")
}

func TestChainService_Submit_InvalidRangeTouchesNothing(t *testing.T) {
	f := newChainFixture(t, true)

	req := sampleRequest()
	req.ChunkSize = 0

	res, err := f.svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsInvalidRange(err))
	assert.Equal(t, "chunk_size", apperrors.GetField(err))
}

func TestChainService_Submit_RequiresModel(t *testing.T) {
	f := newChainFixture(t, false)

	req := sampleRequest()
	req.Model = "  "

	_, err := f.svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "model", apperrors.GetField(err))
}

func TestChainService_Submit_JournalCreateFails(t *testing.T) {
	f := newChainFixture(t, true)

	f.locker.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return("tok", true, nil)
	f.journal.EXPECT().CreateRun(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))
	f.locker.EXPECT().Release(gomock.Any(), gomock.Any(), "tok").Return(true, nil)

	_, err := f.svc.Submit(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create chain run")
}

func TestChainService_Submit_WithoutJournal(t *testing.T) {
	f := newChainFixture(t, false)

	f.sub.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return("1001", nil)

	res, err := f.svc.Submit(context.Background(), SubmitRequest{
		Model: "MIROC5", StartYear: 2014, EndYear: 2014, StartMonth: 12, EndMonth: 12, ChunkSize: 3,
	})
	require.NoError(t, err)
	_, parseErr := uuid.Parse(res.Run.ID)
	require.NoError(t, parseErr)
	assert.Equal(t, "slurm", res.Run.Backend)
	assert.Equal(t, model.WorkChunk{StartYear: 2014, EndYear: 2014, StartMonth: 12, EndMonth: 12}, res.Jobs[0].Chunk)
}

func TestChainService_Status(t *testing.T) {
	f := newChainFixture(t, true)
	ctx := context.Background()

	dep := "1001"
	jobs := []model.SubmittedJob{
		{JobID: "1001", Chunk: model.WorkChunk{StartYear: 1985, EndYear: 1987, StartMonth: 1, EndMonth: 12}},
		{JobID: "1002", Chunk: model.WorkChunk{StartYear: 1988, EndYear: 1990, StartMonth: 1, EndMonth: 12}, DependsOn: &dep},
	}
	f.journal.EXPECT().GetRun(ctx, "run-1").Return(sampleRun(), nil)
	f.journal.EXPECT().ListJobs(ctx, "run-1").Return(jobs, nil)
	f.insp.EXPECT().State(gomock.Any(), "1001").Return(model.QueueStateRunning, nil)
	f.insp.EXPECT().State(gomock.Any(), "1002").Return(model.QueueStateUnknown, errors.New("sacct: timeout"))

	report, err := f.svc.Status(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, report.Jobs, 2)

	assert.Equal(t, 1, report.Jobs[0].Position)
	assert.Equal(t, model.QueueStateRunning, report.Jobs[0].State)
	assert.Empty(t, report.Jobs[0].Err)

	assert.Equal(t, 2, report.Jobs[1].Position)
	assert.Equal(t, model.QueueStateUnknown, report.Jobs[1].State)
	assert.Contains(t, report.Jobs[1].Err, "sacct: timeout")

	g, ok := f.metrics.Find("chain.status.jobs")
	require.True(t, ok)
	assert.Equal(t, float64(2), g.Value)
}

func TestChainService_StatusNotFound(t *testing.T) {
	f := newChainFixture(t, true)

	f.journal.EXPECT().GetRun(gomock.Any(), "missing").Return(nil, apperrors.NotFoundf("chain run not found"))

	_, err := f.svc.Status(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestChainService_StatusRequiresJournal(t *testing.T) {
	f := newChainFixture(t, false)

	_, err := f.svc.Status(context.Background(), "run-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.List(context.Background(), model.ChainRunListOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestChainService_List(t *testing.T) {
	f := newChainFixture(t, true)

	opts := model.ChainRunListOptions{Model: "CanESM2", Limit: 10}
	f.journal.EXPECT().ListRuns(gomock.Any(), opts).Return([]*model.ChainRun{sampleRun()}, nil)

	runs, err := f.svc.List(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}
