package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/domain/model"
	apperrors "github.com/target/ivt-chain/internal/errors"
)

var _ core.ChainRepository = (*ChainRepo)(nil)

// Queries stick to $n placeholders in ascending order so they run unchanged on pgx and go-sqlite3.
const (
	chainRunColumns = `id, model, backend, status, start_year, end_year, start_month, end_month,
		chunk_size, last_error, created_at, updated_at`

	chainRunInsertQuery = `INSERT INTO chain_runs (` + chainRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	chainRunGetQuery = `SELECT ` + chainRunColumns + ` FROM chain_runs WHERE id = $1`

	chainRunFinishQuery = `UPDATE chain_runs SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4`

	chainJobInsertQuery = `INSERT INTO chain_jobs
		(run_id, position, job_id, depends_on, start_year, end_year, start_month, end_month, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	chainJobListQuery = `SELECT job_id, depends_on, start_year, end_year, start_month, end_month, submitted_at
		FROM chain_jobs WHERE run_id = $1 ORDER BY position ASC`

	defaultChainRunLimit = 50
)

// ChainRepo journals chain submissions in a database/sql store (PostgreSQL via pgx or SQLite).
type ChainRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewChainRepo creates a new ChainRepo instance with the given database connection.
func NewChainRepo(db *sql.DB) *ChainRepo {
	return &ChainRepo{
		DB:    db,
		clock: SystemClock{},
	}
}

// NewChainRepoWithClock creates a ChainRepo stamping rows from clock.
func NewChainRepoWithClock(db *sql.DB, clock Clock) *ChainRepo {
	return &ChainRepo{
		DB:    db,
		clock: clock,
	}
}

// CreateRun inserts a new run in status submitting.
func (r *ChainRepo) CreateRun(ctx context.Context, p core.CreateChainRunParams) (*model.ChainRun, error) {
	now := r.clock.Now().UTC()
	run := &model.ChainRun{
		ID:         uuid.NewString(),
		Model:      p.Model,
		Backend:    p.Backend,
		Status:     model.ChainStatusSubmitting,
		StartYear:  p.StartYear,
		EndYear:    p.EndYear,
		StartMonth: p.StartMonth,
		EndMonth:   p.EndMonth,
		ChunkSize:  p.ChunkSize,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := r.DB.ExecContext(ctx, chainRunInsertQuery,
		run.ID, run.Model, run.Backend, string(run.Status),
		run.StartYear, run.EndYear, run.StartMonth, run.EndMonth, run.ChunkSize,
		nil, run.CreatedAt, run.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("create chain run: %w", apperrors.MapDBError(err))
	}
	return run, nil
}

// RecordJob appends an accepted job to the run.
func (r *ChainRepo) RecordJob(ctx context.Context, runID string, position int, job model.SubmittedJob) error {
	submittedAt := job.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = r.clock.Now()
	}

	var dependsOn sql.NullString
	if job.DependsOn != nil {
		dependsOn = sql.NullString{String: *job.DependsOn, Valid: true}
	}

	if _, err := r.DB.ExecContext(ctx, chainJobInsertQuery,
		runID, position, job.JobID, dependsOn,
		job.Chunk.StartYear, job.Chunk.EndYear, job.Chunk.StartMonth, job.Chunk.EndMonth,
		submittedAt.UTC(),
	); err != nil {
		return fmt.Errorf("record chain job %s: %w", job.JobID, apperrors.MapDBError(err))
	}
	return nil
}

// FinishRun sets the final status of a run.
func (r *ChainRepo) FinishRun(ctx context.Context, runID string, status model.ChainStatus, lastErr string) error {
	if !status.Valid() {
		return apperrors.ValidationField("status", fmt.Sprintf("invalid chain status %q", status))
	}

	var errText sql.NullString
	if lastErr != "" {
		errText = sql.NullString{String: lastErr, Valid: true}
	}

	res, err := r.DB.ExecContext(ctx, chainRunFinishQuery,
		string(status), errText, r.clock.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish chain run: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish chain run: %w", err)
	}
	if n == 0 {
		return apperrors.NotFoundf("chain run %s not found", runID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChainRun(row rowScanner) (*model.ChainRun, error) {
	var (
		run     model.ChainRun
		status  string
		lastErr sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.Model, &run.Backend, &status,
		&run.StartYear, &run.EndYear, &run.StartMonth, &run.EndMonth,
		&run.ChunkSize, &lastErr, &run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.Status = model.ChainStatus(status)
	if lastErr.Valid {
		run.LastError = &lastErr.String
	}
	return &run, nil
}

// GetRun retrieves a run by id.
func (r *ChainRepo) GetRun(ctx context.Context, runID string) (*model.ChainRun, error) {
	run, err := scanChainRun(r.DB.QueryRowContext(ctx, chainRunGetQuery, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("chain run %s not found", runID)
		}
		return nil, fmt.Errorf("get chain run: %w", apperrors.MapDBError(err))
	}
	return run, nil
}

// buildListRunsQuery renders the filtered listing query, newest runs first.
func buildListRunsQuery(opts model.ChainRunListOptions) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if opts.Model != "" {
		args = append(args, opts.Model)
		conds = append(conds, "model = $"+strconv.Itoa(len(args)))
	}
	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + chainRunColumns + " FROM chain_runs")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id ASC")

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultChainRunLimit
	}
	args = append(args, limit)
	b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	args = append(args, max(opts.Offset, 0))
	b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))

	return b.String(), args
}

// ListRuns lists runs, newest first.
func (r *ChainRepo) ListRuns(ctx context.Context, opts model.ChainRunListOptions) ([]*model.ChainRun, error) {
	q, args := buildListRunsQuery(opts)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list chain runs: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []*model.ChainRun
	for rows.Next() {
		run, err := scanChainRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chain runs: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListJobs returns the run's jobs in chain order.
func (r *ChainRepo) ListJobs(ctx context.Context, runID string) ([]model.SubmittedJob, error) {
	rows, err := r.DB.QueryContext(ctx, chainJobListQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("list chain jobs: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.SubmittedJob
	for rows.Next() {
		var (
			job       model.SubmittedJob
			dependsOn sql.NullString
		)
		if err := rows.Scan(
			&job.JobID, &dependsOn,
			&job.Chunk.StartYear, &job.Chunk.EndYear, &job.Chunk.StartMonth, &job.Chunk.EndMonth,
			&job.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chain job: %w", err)
		}
		if dependsOn.Valid {
			job.DependsOn = &dependsOn.String
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chain jobs: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
