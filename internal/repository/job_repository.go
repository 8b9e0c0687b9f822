package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// JobRepository is the durable ledger of orchestration runs. It also carries
// the single-active-job lease: the running status is granted by compare-and-
// set against the whole table, so exclusion survives process restarts.
type JobRepository struct {
	pool PoolInterface
}

// NewJobRepository creates a new JobRepository with the given pool.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// NewJobRepositoryWithPool creates a new JobRepository with a custom pool
// interface. This is primarily used for testing.
func NewJobRepositoryWithPool(pool PoolInterface) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, status, started_at, finished_at, total_tasks, done, successes, failures, last_event, only_code, only_player`

// Insert records a newly created job.
func (r *JobRepository) Insert(ctx context.Context, job *model.Job) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, started_at, total_tasks, done, successes, failures, last_event, only_code, only_player)
		 VALUES ($1, $2, $3, $4, 0, 0, 0, '', $5, $6)`,
		job.ID, string(job.Status), job.StartedAt, job.TotalTasks, job.OnlyCode, job.OnlyPlayer)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get retrieves a job by id.
// Returns nil, nil if the job is not found (service layer handles this).
func (r *JobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id).
		Scan(&job.ID, &job.Status, &job.StartedAt, &job.FinishedAt, &job.TotalTasks,
			&job.Done, &job.Successes, &job.Failures, &job.LastEvent, &job.OnlyCode, &job.OnlyPlayer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// List returns the most recently started jobs.
func (r *JobRepository) List(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		var job model.Job
		if err := rows.Scan(&job.ID, &job.Status, &job.StartedAt, &job.FinishedAt, &job.TotalTasks,
			&job.Done, &job.Successes, &job.Failures, &job.LastEvent, &job.OnlyCode, &job.OnlyPlayer); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs rows: %w", err)
	}
	return jobs, nil
}

// HasActive reports whether any job is currently running or paused.
func (r *JobRepository) HasActive(ctx context.Context) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE status IN ('running', 'rate_limited'))`).
		Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check active jobs: %w", err)
	}
	return active, nil
}

// AcquireLease moves a queued or paused job to running, but only while no
// other job holds the running status. Reports whether the lease was granted.
func (r *JobRepository) AcquireLease(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = 'running'
		 WHERE id = $1 AND status IN ('queued', 'rate_limited')
		   AND NOT EXISTS (SELECT 1 FROM jobs WHERE status = 'running' AND id <> $1)`,
		id)
	if err != nil {
		return false, fmt.Errorf("acquire lease for job %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Advance bumps the job counters for one processed work item and overwrites
// the last event line. Counters only ever grow.
func (r *JobRepository) Advance(ctx context.Context, id string, status model.HistoryStatus, lastEvent string) error {
	var successDelta, failureDelta int
	switch status {
	case model.StatusSuccess, model.StatusAlreadyRedeemed:
		successDelta = 1
	case model.StatusError:
		failureDelta = 1
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET done = done + 1, successes = successes + $2, failures = failures + $3, last_event = $4
		 WHERE id = $1`,
		id, successDelta, failureDelta, lastEvent)
	if err != nil {
		return fmt.Errorf("advance job %s: %w", id, err)
	}
	return nil
}

// Finish moves a running job to its end state. Guarded on the running status
// so a concurrent cancellation is never overwritten.
func (r *JobRepository) Finish(ctx context.Context, id string, status model.JobStatus, finishedAt int64, lastEvent string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, finished_at = $3,
		        last_event = COALESCE(NULLIF($4, ''), last_event)
		 WHERE id = $1 AND status = 'running'`,
		id, string(status), finishedAt, lastEvent)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return nil
}

// CancelActive cancels the given job, or every active job when id is empty,
// and returns the ids that were transitioned.
func (r *JobRepository) CancelActive(ctx context.Context, id string, finishedAt int64) ([]string, error) {
	query := `UPDATE jobs SET status = 'cancelled', finished_at = $1
	          WHERE status IN ('queued', 'running', 'rate_limited')`
	args := []any{finishedAt}
	if id != "" {
		query += ` AND id = $2`
		args = append(args, id)
	}
	query += ` RETURNING id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cancel jobs: %w", err)
	}
	defer rows.Close()

	cancelled := []string{}
	for rows.Next() {
		var jobID string
		if err := rows.Scan(&jobID); err != nil {
			return nil, fmt.Errorf("scan cancelled job id: %w", err)
		}
		cancelled = append(cancelled, jobID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cancelled jobs: %w", err)
	}
	return cancelled, nil
}

// RecoverInterrupted parks jobs left running by a dead process as paused.
// Called once at startup, before the lease can be acquired again.
func (r *JobRepository) RecoverInterrupted(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = 'rate_limited', last_event = 'paused: interrupted by restart'
		 WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
