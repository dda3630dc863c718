package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/model"
)

// JobMetadata is the decoded shape of a job's metadata column. Create and
// prune jobs carry stats; list jobs carry archives.
type JobMetadata struct {
	Stats    *borg.Stats    `json:"stats,omitempty"`
	Archives []borg.Archive `json:"archives,omitempty"`
}

// AnalyticsService derives chart and statistics payloads from stored job
// metadata.
type AnalyticsService struct {
	db    DB
	jobs  *JobService
	repos *RepositoryService
}

func NewAnalyticsService(db DB, jobs *JobService, repos *RepositoryService) *AnalyticsService {
	return &AnalyticsService{db: db, jobs: jobs, repos: repos}
}

// SizePoint is one measurement on the repository size trend.
type SizePoint struct {
	Date string `json:"date"`
	Size string `json:"size"`
}

// RepositoryStats summarizes backup history for one repository. String fields
// read "unknown" when no job carried the underlying measurement.
type RepositoryStats struct {
	TotalJobs          int         `json:"total_jobs"`
	SuccessfulJobs     int         `json:"successful_jobs"`
	FailedJobs         int         `json:"failed_jobs"`
	ArchivesCount      int         `json:"archives_count"`
	LatestSize         string      `json:"latest_size"`
	LastBackupTime     *time.Time  `json:"last_backup_time,omitempty"`
	AverageSize        string      `json:"average_size"`
	AverageCompression string      `json:"average_compression"`
	SpaceUsagePercent  float64     `json:"space_usage_percent"`
	SizeTrend          []SizePoint `json:"size_trend"`
}

const gib = 1024 * 1024 * 1024

func (s *AnalyticsService) RepositoryStats(ctx context.Context, repoID string) (*RepositoryStats, error) {
	stats := &RepositoryStats{
		LatestSize:         "unknown",
		AverageSize:        "unknown",
		AverageCompression: "unknown",
		SizeTrend:          []SizePoint{},
	}

	err := s.db.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'success'),
		        count(*) FILTER (WHERE status = 'failed')
		 FROM jobs WHERE repository_id = $1`, repoID,
	).Scan(&stats.TotalJobs, &stats.SuccessfulJobs, &stats.FailedJobs)
	if err != nil {
		return nil, fmt.Errorf("count repository jobs: %w", err)
	}

	// Archive count comes from the most recent successful list job.
	if listJob, err := s.jobs.LatestSuccessful(ctx, repoID, model.JobTypeList); err == nil && listJob != nil {
		var meta JobMetadata
		if err := listJob.DecodeMetadata(&meta); err == nil {
			stats.ArchivesCount = len(meta.Archives)
		}
	}

	backups, err := s.jobs.ListSuccessful(ctx, repoID, model.JobTypeCreate, false, 30)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return stats, nil
	}

	latest := backups[0]
	stats.LastBackupTime = &latest.CreatedAt
	if m := decodeStats(&latest); m != nil && m.AllArchives != nil {
		stats.LatestSize = m.AllArchives.Deduplicated
	}

	var totalBytes int64
	var totalCompression float64
	var sizeCount, compressionCount int
	for i := range backups {
		m := decodeStats(&backups[i])
		if m == nil || m.ThisArchive == nil {
			continue
		}
		stats.SizeTrend = append(stats.SizeTrend, SizePoint{
			Date: backups[i].CreatedAt.Format(time.RFC3339),
			Size: m.ThisArchive.Deduplicated,
		})
		if bytes, err := borg.ParseSize(m.ThisArchive.Deduplicated); err == nil && bytes > 0 {
			totalBytes += bytes
			sizeCount++
		}
		if m.CompressionRatio != nil && *m.CompressionRatio > 0 {
			totalCompression += *m.CompressionRatio
			compressionCount++
		}
	}
	if sizeCount > 0 {
		stats.AverageSize = borg.FormatSize(totalBytes / int64(sizeCount))
	}
	if compressionCount > 0 {
		stats.AverageCompression = fmt.Sprintf("%.2f", totalCompression/float64(compressionCount))
	}

	if stats.LatestSize != "unknown" {
		repo, err := s.repos.GetByID(ctx, repoID)
		if err == nil && repo.MaxSizeGB != nil && *repo.MaxSizeGB > 0 {
			if bytes, err := borg.ParseSize(stats.LatestSize); err == nil {
				stats.SpaceUsagePercent = float64(bytes) / (*repo.MaxSizeGB * gib) * 100
			}
		}
	}

	return stats, nil
}

// GrowthChart is repository size over time, one point per successful backup.
type GrowthChart struct {
	Available    bool      `json:"available"`
	Labels       []string  `json:"labels"`
	Data         []float64 `json:"data"`
	ArchiveNames []string  `json:"archive_names"`
	Message      string    `json:"message,omitempty"`
}

func (s *AnalyticsService) GrowthChart(ctx context.Context, repoID string) (*GrowthChart, error) {
	chart := &GrowthChart{Labels: []string{}, Data: []float64{}, ArchiveNames: []string{}}

	backups, err := s.jobs.ListSuccessful(ctx, repoID, model.JobTypeCreate, true, 100)
	if err != nil {
		return nil, err
	}

	for i := range backups {
		m := decodeStats(&backups[i])
		if m == nil || m.AllArchives == nil {
			continue
		}
		bytes, err := borg.ParseSize(m.AllArchives.Deduplicated)
		if err != nil {
			continue
		}
		name := fmt.Sprintf("Backup %s", backups[i].ID)
		if backups[i].ArchiveName != nil {
			name = *backups[i].ArchiveName
		}
		chart.Labels = append(chart.Labels, backups[i].CreatedAt.Format("2006-01-02 15:04"))
		chart.Data = append(chart.Data, roundGB(bytes))
		chart.ArchiveNames = append(chart.ArchiveNames, name)
	}

	if len(chart.Data) < 2 {
		chart.Message = "Create at least 2 backups to see growth data"
		return chart, nil
	}
	chart.Available = true
	return chart, nil
}

func roundGB(bytes int64) float64 {
	gb := float64(bytes) / gib
	return float64(int64(gb*100+0.5)) / 100
}

// FrequencyChart counts successful backups by weekday and by hour of day.
type FrequencyChart struct {
	ByDay  FrequencySeries `json:"by_day"`
	ByHour FrequencySeries `json:"by_hour"`
}

type FrequencySeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// weekdays starts on Monday to match the chart rendering order.
var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (s *AnalyticsService) FrequencyChart(ctx context.Context, repoID string) (*FrequencyChart, error) {
	backups, err := s.jobs.ListSuccessful(ctx, repoID, model.JobTypeCreate, true, 100)
	if err != nil {
		return nil, err
	}

	dayCounts := make([]int, 7)
	hourCounts := make([]int, 24)
	for i := range backups {
		ts := backups[i].CreatedAt
		// time.Weekday has Sunday=0; shift so Monday is index 0.
		dayCounts[(int(ts.Weekday())+6)%7]++
		hourCounts[ts.Hour()]++
	}

	hourLabels := make([]string, 24)
	for h := range hourLabels {
		hourLabels[h] = fmt.Sprintf("%d:00", h)
	}

	return &FrequencyChart{
		ByDay:  FrequencySeries{Labels: weekdays, Data: dayCounts},
		ByHour: FrequencySeries{Labels: hourLabels, Data: hourCounts},
	}, nil
}

// Forecast estimates when the repository will reach its configured maximum
// size, from a linear regression over the all-archives deduplicated size.
type Forecast struct {
	ForecastAvailable bool    `json:"forecast_available"`
	GrowthRate        float64 `json:"growth_rate,omitempty"`
	MaxDate           string  `json:"max_date,omitempty"`
	DaysUntilMax      int     `json:"days_until_max,omitempty"`
	Message           string  `json:"message,omitempty"`
}

func (s *AnalyticsService) Forecast(ctx context.Context, repoID string) (*Forecast, error) {
	backups, err := s.jobs.ListSuccessful(ctx, repoID, model.JobTypeCreate, true, 0)
	if err != nil {
		return nil, err
	}

	var xs, ys []float64
	for i := range backups {
		m := decodeStats(&backups[i])
		if m == nil || m.AllArchives == nil {
			continue
		}
		bytes, err := borg.ParseSize(m.AllArchives.Deduplicated)
		if err != nil {
			continue
		}
		xs = append(xs, float64(backups[i].CreatedAt.Unix()))
		ys = append(ys, float64(bytes))
	}

	if len(xs) < 2 {
		return &Forecast{Message: "Not enough data for forecasting"}, nil
	}

	slope, intercept, ok := linearRegression(xs, ys)
	if !ok {
		return &Forecast{Message: "Cannot calculate forecast (constant data)"}, nil
	}
	if slope <= 0 {
		return &Forecast{Message: "Cannot calculate forecast (negative growth)"}, nil
	}

	repo, err := s.repos.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}
	if repo.MaxSizeGB == nil || *repo.MaxSizeGB <= 0 {
		return &Forecast{Message: "Cannot calculate forecast (no maximum size configured)"}, nil
	}

	maxBytes := *repo.MaxSizeGB * gib
	timeToMax := (maxBytes - intercept) / slope
	maxDate := time.Unix(int64(timeToMax), 0).UTC()

	return &Forecast{
		ForecastAvailable: true,
		GrowthRate:        slope,
		MaxDate:           maxDate.Format(time.RFC3339),
		DaysUntilMax:      int(time.Until(maxDate).Hours() / 24),
	}, nil
}

// linearRegression fits y = slope*x + intercept by least squares. ok is false
// when every x is identical.
func linearRegression(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	var num, den float64
	for i := range xs {
		num += (xs[i] - meanX) * (ys[i] - meanY)
		den += (xs[i] - meanX) * (xs[i] - meanX)
	}
	if den == 0 {
		return 0, 0, false
	}
	slope = num / den
	intercept = meanY - slope*meanX
	return slope, intercept, true
}

func decodeStats(job *model.Job) *borg.Stats {
	var meta JobMetadata
	if err := job.DecodeMetadata(&meta); err != nil {
		return nil
	}
	return meta.Stats
}
