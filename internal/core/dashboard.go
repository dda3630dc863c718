package core

import (
	"context"
	"fmt"
)

// DashboardStats holds aggregate counts for a user's view of the system.
type DashboardStats struct {
	Repositories   int           `json:"repositories"`
	Sources        int           `json:"sources"`
	Schedules      int           `json:"schedules"`
	ActiveMounts   int           `json:"active_mounts"`
	OrphanedMounts int           `json:"orphaned_mounts"`
	TotalJobs      int           `json:"total_jobs"`
	RunningJobs    int           `json:"running_jobs"`
	JobsByStatus   []StatusCount `json:"jobs_by_status"`
	JobsByType     []StatusCount `json:"jobs_by_type"`
}

// StatusCount holds a count grouped by one label.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DashboardService queries aggregate stats from the database.
type DashboardService struct {
	db DB
}

func NewDashboardService(db DB) *DashboardService {
	return &DashboardService{db: db}
}

// Stats returns aggregate counts for one user using a single query with CTEs.
func (s *DashboardService) Stats(ctx context.Context, userID string) (*DashboardStats, error) {
	const countsQuery = `
		WITH repository_count AS (
			SELECT count(*) AS c FROM repositories WHERE user_id = $1
		), source_count AS (
			SELECT count(*) AS c FROM sources WHERE user_id = $1
		), schedule_count AS (
			SELECT count(*) AS c FROM schedules WHERE user_id = $1
		), mount_active AS (
			SELECT count(*) AS c FROM mounts WHERE user_id = $1 AND active
		), mount_orphaned AS (
			SELECT count(*) AS c FROM mounts WHERE user_id = $1 AND active AND orphaned
		), job_count AS (
			SELECT count(*) AS c FROM jobs WHERE user_id = $1 AND job_type <> 'list'
		), job_running AS (
			SELECT count(*) AS c FROM jobs WHERE user_id = $1 AND status = 'running'
		)
		SELECT
			(SELECT c FROM repository_count),
			(SELECT c FROM source_count),
			(SELECT c FROM schedule_count),
			(SELECT c FROM mount_active),
			(SELECT c FROM mount_orphaned),
			(SELECT c FROM job_count),
			(SELECT c FROM job_running)`

	stats := &DashboardStats{}
	err := s.db.QueryRow(ctx, countsQuery, userID).Scan(
		&stats.Repositories,
		&stats.Sources,
		&stats.Schedules,
		&stats.ActiveMounts,
		&stats.OrphanedMounts,
		&stats.TotalJobs,
		&stats.RunningJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}

	statusRows, err := s.db.Query(ctx,
		`SELECT status, count(*) FROM jobs
		 WHERE user_id = $1 AND job_type <> 'list'
		 GROUP BY status ORDER BY count(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard jobs by status: %w", err)
	}
	defer statusRows.Close()

	for statusRows.Next() {
		var sc StatusCount
		if err := statusRows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan job status count: %w", err)
		}
		stats.JobsByStatus = append(stats.JobsByStatus, sc)
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job status counts: %w", err)
	}

	typeRows, err := s.db.Query(ctx,
		`SELECT job_type, count(*) FROM jobs
		 WHERE user_id = $1 AND job_type <> 'list'
		 GROUP BY job_type ORDER BY count(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard jobs by type: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var tc StatusCount
		if err := typeRows.Scan(&tc.Status, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan job type count: %w", err)
		}
		stats.JobsByType = append(stats.JobsByType, tc)
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job type counts: %w", err)
	}

	return stats, nil
}
