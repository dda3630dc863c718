package core

import (
	"context"
	"fmt"

	"github.com/edvin/borgdesk/internal/model"
)

type JobService struct {
	db DB
}

func NewJobService(db DB) *JobService {
	return &JobService{db: db}
}

const jobColumns = `id, job_type, status, repository_id, user_id, source_id, archive_name, log_output, metadata, started_at, completed_at, created_at`

func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.JobType, &j.Status, &j.RepositoryID, &j.UserID,
		&j.SourceID, &j.ArchiveName, &j.LogOutput, &j.Metadata,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *JobService) Create(ctx context.Context, job *model.Job) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO jobs (id, job_type, status, repository_id, user_id, source_id, archive_name, log_output, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.JobType, job.Status, job.RepositoryID, job.UserID,
		job.SourceID, job.ArchiveName, job.LogOutput, job.Metadata, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListByUser returns the user's jobs, newest first. Internal 'list' jobs are
// excluded; they exist only to refresh archive metadata.
func (s *JobService) ListByUser(ctx context.Context, userID string, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = $1 AND job_type <> $2
		 ORDER BY created_at DESC LIMIT $3`,
		userID, model.JobTypeList, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListByRepository returns jobs for a repository, newest first, excluding
// 'list' jobs.
func (s *JobService) ListByRepository(ctx context.Context, repoID string, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE repository_id = $1 AND job_type <> $2
		 ORDER BY created_at DESC LIMIT $3`,
		repoID, model.JobTypeList, limit)
	if err != nil {
		return nil, fmt.Errorf("list repository jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListSuccessful returns successful jobs of one type for a repository in the
// given order, for the analytics endpoints.
func (s *JobService) ListSuccessful(ctx context.Context, repoID, jobType string, ascending bool, limit int) ([]model.Job, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	query := `SELECT ` + jobColumns + ` FROM jobs
		 WHERE repository_id = $1 AND job_type = $2 AND status = $3
		 ORDER BY created_at ` + order
	args := []any{repoID, jobType, model.JobStatusSuccess}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list successful %s jobs: %w", jobType, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// LatestSuccessful returns the most recent successful job of one type, or nil
// when there is none yet.
func (s *JobService) LatestSuccessful(ctx context.Context, repoID, jobType string) (*model.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE repository_id = $1 AND job_type = $2 AND status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		repoID, jobType, model.JobStatusSuccess))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest successful %s job: %w", jobType, err)
	}
	return job, nil
}

func (s *JobService) MarkRunning(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = now() WHERE id = $2`,
		model.JobStatusRunning, id)
	if err != nil {
		return fmt.Errorf("mark job %s running: %w", id, err)
	}
	return nil
}

// AppendOutput adds a chunk to the job's log so pollers see progress while the
// subprocess is still running.
func (s *JobService) AppendOutput(ctx context.Context, id, chunk string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET log_output = log_output || $1 WHERE id = $2`, chunk, id)
	if err != nil {
		return fmt.Errorf("append job %s output: %w", id, err)
	}
	return nil
}

// Finish records the terminal status, the full output, and any metadata.
func (s *JobService) Finish(ctx context.Context, id, status, logOutput string, metadata []byte) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, log_output = $2, metadata = COALESCE($3, metadata), completed_at = now()
		 WHERE id = $4`,
		status, logOutput, metadata, id)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return nil
}

// Cancel marks a running job cancelled. The subprocess itself is not killed;
// its eventual result is discarded by the status check in the runner.
func (s *JobService) Cancel(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, completed_at = now(),
		        log_output = log_output || $2
		 WHERE id = $3 AND status = $4`,
		model.JobStatusCancelled, "\n\n--- Job cancelled by user ---", id, model.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not running", id)
	}
	return nil
}

// Status returns the current status without loading the log output.
func (s *JobService) Status(ctx context.Context, id string) (string, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("get job %s status: %w", id, err)
	}
	return status, nil
}

func collectJobs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
