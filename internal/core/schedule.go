package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/borgdesk/internal/model"
)

type ScheduleService struct {
	db DB
}

func NewScheduleService(db DB) *ScheduleService {
	return &ScheduleService{db: db}
}

const scheduleColumns = `id, name, repository_id, source_id, user_id, archive_prefix, frequency, hour, minute, day_of_week, day_of_month, keep_daily, keep_weekly, keep_monthly, auto_prune, is_active, last_run, next_run, created_at`

func scanSchedule(row interface{ Scan(...any) error }) (*model.Schedule, error) {
	var sc model.Schedule
	err := row.Scan(&sc.ID, &sc.Name, &sc.RepositoryID, &sc.SourceID, &sc.UserID,
		&sc.ArchivePrefix, &sc.Frequency, &sc.Hour, &sc.Minute,
		&sc.DayOfWeek, &sc.DayOfMonth,
		&sc.KeepDaily, &sc.KeepWeekly, &sc.KeepMonthly,
		&sc.AutoPrune, &sc.IsActive, &sc.LastRun, &sc.NextRun, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *ScheduleService) Create(ctx context.Context, sc *model.Schedule) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO schedules (id, name, repository_id, source_id, user_id, archive_prefix, frequency, hour, minute, day_of_week, day_of_month, keep_daily, keep_weekly, keep_monthly, auto_prune, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		sc.ID, sc.Name, sc.RepositoryID, sc.SourceID, sc.UserID, sc.ArchivePrefix,
		sc.Frequency, sc.Hour, sc.Minute, sc.DayOfWeek, sc.DayOfMonth,
		sc.KeepDaily, sc.KeepWeekly, sc.KeepMonthly, sc.AutoPrune, sc.IsActive, sc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return sc, nil
}

func (s *ScheduleService) ListByUser(ctx context.Context, userID string) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// ListActive returns every enabled schedule across all users, for the
// dispatcher.
func (s *ScheduleService) ListActive(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *ScheduleService) Update(ctx context.Context, sc *model.Schedule) error {
	_, err := s.db.Exec(ctx,
		`UPDATE schedules SET name = $1, repository_id = $2, source_id = $3, archive_prefix = $4,
		        frequency = $5, hour = $6, minute = $7, day_of_week = $8, day_of_month = $9,
		        keep_daily = $10, keep_weekly = $11, keep_monthly = $12, auto_prune = $13, is_active = $14
		 WHERE id = $15`,
		sc.Name, sc.RepositoryID, sc.SourceID, sc.ArchivePrefix,
		sc.Frequency, sc.Hour, sc.Minute, sc.DayOfWeek, sc.DayOfMonth,
		sc.KeepDaily, sc.KeepWeekly, sc.KeepMonthly, sc.AutoPrune, sc.IsActive, sc.ID)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", sc.ID, err)
	}
	return nil
}

// RecordRun stores the run that just happened and when the next one is due.
func (s *ScheduleService) RecordRun(ctx context.Context, id string, ranAt time.Time, nextRun *time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE schedules SET last_run = $1, next_run = $2 WHERE id = $3`,
		ranAt, nextRun, id)
	if err != nil {
		return fmt.Errorf("record schedule %s run: %w", id, err)
	}
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return nil
}

func collectSchedules(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Schedule, error) {
	var schedules []model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}
