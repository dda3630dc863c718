package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Schedule binds a Source to a Repository on a recurrence rule.
type Schedule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	RepositoryID  string     `json:"repository_id"`
	SourceID      string     `json:"source_id"`
	UserID        string     `json:"user_id"`
	ArchivePrefix *string    `json:"archive_prefix,omitempty"`
	Frequency     string     `json:"frequency"`
	Hour          int        `json:"hour"`
	Minute        int        `json:"minute"`
	DayOfWeek     *string    `json:"day_of_week,omitempty"`
	DayOfMonth    *int       `json:"day_of_month,omitempty"`
	KeepDaily     int        `json:"keep_daily"`
	KeepWeekly    int        `json:"keep_weekly"`
	KeepMonthly   int        `json:"keep_monthly"`
	AutoPrune     bool       `json:"auto_prune"`
	IsActive      bool       `json:"is_active"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

var cronDays = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// CronExpression derives the standard 5-field cron expression for the
// schedule's recurrence rule.
func (s *Schedule) CronExpression() (string, error) {
	switch s.Frequency {
	case FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), nil
	case FrequencyWeekly:
		if s.DayOfWeek == nil {
			return "", fmt.Errorf("weekly schedule %s has no day of week", s.ID)
		}
		day, ok := cronDays[strings.ToLower(*s.DayOfWeek)]
		if !ok {
			return "", fmt.Errorf("unknown day of week %q", *s.DayOfWeek)
		}
		return fmt.Sprintf("%d %d * * %d", s.Minute, s.Hour, day), nil
	case FrequencyMonthly:
		day := 1
		if s.DayOfMonth != nil {
			day = *s.DayOfMonth
		}
		if day < 1 {
			day = 1
		}
		if day > 31 {
			day = 31
		}
		return fmt.Sprintf("%d %d %d * *", s.Minute, s.Hour, day), nil
	}
	return "", fmt.Errorf("unknown frequency %q", s.Frequency)
}
