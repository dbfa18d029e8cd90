package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/model"
)

type JobRepository interface {
	Create(ctx context.Context, tx db.Transaction, job *model.Job) error
	Get(ctx context.Context, tx db.Transaction, jobID string) (*model.Job, error)
	List(ctx context.Context, tx db.Transaction, limit int) ([]model.Job, error)
	MarkRunning(ctx context.Context, tx db.Transaction, jobID string, at time.Time) error
	UpdateItems(ctx context.Context, tx db.Transaction, jobID string, items []model.JobItem) error
	Finish(ctx context.Context, tx db.Transaction, jobID string, status model.JobStatus, jobErr string, items []model.JobItem, at time.Time) error
	AppendLog(ctx context.Context, tx db.Transaction, jobID string, entry model.LogEntry) error
	Logs(ctx context.Context, tx db.Transaction, jobID string, afterSeq int) ([]model.LogEntry, error)
}

type MySQLJobRepository struct {
	dbProvider db.Provider
}

func NewJobRepository(provider db.Provider) JobRepository {
	return &MySQLJobRepository{dbProvider: provider}
}

const jobColumns = "job_id, scope, target_id, status, error, items, created_at, started_at, finished_at"

func (r *MySQLJobRepository) Create(ctx context.Context, tx db.Transaction, job *model.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.JobID == "" {
		return errors.New("job id is empty")
	}

	items, err := marshalPayload(job.Items)
	if err != nil {
		return err
	}

	query := "INSERT INTO jobs (job_id, scope, target_id, status, error, items, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx, query, job.JobID, job.Scope, job.TargetID, job.Status, job.Error, items, job.CreatedAt.UTC())
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MySQLJobRepository) Get(ctx context.Context, tx db.Transaction, jobID string) (*model.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE job_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *MySQLJobRepository) List(ctx context.Context, tx db.Transaction, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + jobColumns + " FROM jobs ORDER BY created_at DESC, job_id LIMIT ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *MySQLJobRepository) MarkRunning(ctx context.Context, tx db.Transaction, jobID string, at time.Time) error {
	query := "UPDATE jobs SET status = ?, started_at = ? WHERE job_id = ? AND status = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query, model.JobRunning, at.UTC(), jobID, model.JobQueued)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// UpdateItems overwrites the per-item outcomes column. Batch jobs call it
// after every completed item so partial progress is visible mid-run.
func (r *MySQLJobRepository) UpdateItems(ctx context.Context, tx db.Transaction, jobID string, items []model.JobItem) error {
	payload, err := marshalPayload(items)
	if err != nil {
		return err
	}

	query := "UPDATE jobs SET items = ? WHERE job_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query, payload, jobID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *MySQLJobRepository) Finish(ctx context.Context, tx db.Transaction, jobID string, status model.JobStatus, jobErr string, items []model.JobItem, at time.Time) error {
	payload, err := marshalPayload(items)
	if err != nil {
		return err
	}

	query := "UPDATE jobs SET status = ?, error = ?, items = ?, finished_at = ? WHERE job_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query, status, jobErr, payload, at.UTC(), jobID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// AppendLog writes one log line. The entry seq is assigned by the single
// goroutine that owns the job, so (job_id, seq) stays dense and ordered.
func (r *MySQLJobRepository) AppendLog(ctx context.Context, tx db.Transaction, jobID string, entry model.LogEntry) error {
	query := "INSERT INTO job_logs (job_id, seq, at, message) VALUES (?, ?, ?, ?)"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx, query, jobID, entry.Seq, entry.Timestamp.UTC(), entry.Message)
	return err
}

// Logs returns entries with seq greater than afterSeq, oldest first. Pass 0
// for the full log.
func (r *MySQLJobRepository) Logs(ctx context.Context, tx db.Transaction, jobID string, afterSeq int) ([]model.LogEntry, error) {
	query := "SELECT seq, at, message FROM job_logs WHERE job_id = ? AND seq > ? ORDER BY seq"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, jobID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var entry model.LogEntry
		if err := rows.Scan(&entry.Seq, &entry.Timestamp, &entry.Message); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job        model.Job
		jobErr     sql.NullString
		items      sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	if err := row.Scan(&job.JobID, &job.Scope, &job.TargetID, &job.Status, &jobErr, &items, &job.CreatedAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	if jobErr.Valid {
		job.Error = jobErr.String
	}
	if startedAt.Valid {
		at := startedAt.Time
		job.StartedAt = &at
	}
	if finishedAt.Valid {
		at := finishedAt.Time
		job.FinishedAt = &at
	}
	if items.Valid && items.String != "" && items.String != "null" {
		if err := unmarshalPayload(items.String, &job.Items); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
