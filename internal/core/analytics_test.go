package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/borgdesk/internal/model"
)

func newTestAnalyticsService(db DB) *AnalyticsService {
	jobs := NewJobService(db)
	repos := NewRepositoryService(db)
	return NewAnalyticsService(db, jobs, repos)
}

// backupJobScanFunc yields a successful create job whose stats carry the given
// all-archives deduplicated size.
func backupJobScanFunc(id string, created time.Time, dedupSize string) func(dest ...any) error {
	meta, _ := json.Marshal(map[string]any{
		"stats": map[string]any{
			"all_archives": map[string]string{
				"original":     "10.00 GB",
				"compressed":   "8.00 GB",
				"deduplicated": dedupSize,
			},
			"this_archive": map[string]string{
				"original":     "1.00 GB",
				"compressed":   "800.00 MB",
				"deduplicated": "500.00 MB",
			},
			"compression_ratio": 1.25,
		},
	})
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = model.JobTypeCreate
		*(dest[2].(*string)) = model.JobStatusSuccess
		*(dest[3].(*string)) = "repo-1"
		*(dest[4].(*string)) = "user-1"
		*(dest[8].(*json.RawMessage)) = meta
		*(dest[11].(*time.Time)) = created
		return nil
	}
}

// ---------- linearRegression ----------

func TestLinearRegression_ConstantXIsRejected(t *testing.T) {
	_, _, ok := linearRegression([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestLinearRegression_FitsLine(t *testing.T) {
	slope, intercept, ok := linearRegression([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	require.True(t, ok)
	assert.InDelta(t, 2.0, slope, 1e-9)
	assert.InDelta(t, 1.0, intercept, 1e-9)
}

// ---------- Forecast ----------

func TestAnalyticsService_Forecast_TooFewPoints(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(backupJobScanFunc("job-1", base, "1.00 GB")), nil)

	forecast, err := svc.Forecast(ctx, "repo-1")
	require.NoError(t, err)
	assert.False(t, forecast.ForecastAvailable)
	assert.Contains(t, forecast.Message, "Not enough data")
	db.AssertExpectations(t)
}

func TestAnalyticsService_Forecast_NegativeGrowth(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(
			backupJobScanFunc("job-1", base, "5.00 GB"),
			backupJobScanFunc("job-2", base.AddDate(0, 0, 1), "4.00 GB"),
			backupJobScanFunc("job-3", base.AddDate(0, 0, 2), "3.00 GB"),
		), nil)

	forecast, err := svc.Forecast(ctx, "repo-1")
	require.NoError(t, err)
	assert.False(t, forecast.ForecastAvailable)
	assert.Contains(t, forecast.Message, "negative growth")
	db.AssertExpectations(t)
}

func TestAnalyticsService_Forecast_Available(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	base := time.Now().AddDate(0, 0, -2)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(
			backupJobScanFunc("job-1", base, "1.00 GB"),
			backupJobScanFunc("job-2", base.AddDate(0, 0, 1), "2.00 GB"),
			backupJobScanFunc("job-3", base.AddDate(0, 0, 2), "3.00 GB"),
		), nil)

	maxSize := 100.0
	now := time.Now().Truncate(time.Microsecond)
	repoRow := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "repo-1"
		*(dest[1].(*string)) = "laptop-backups"
		*(dest[2].(*string)) = "/srv/borg/laptop"
		*(dest[5].(**float64)) = &maxSize
		*(dest[6].(*string)) = "user-1"
		*(dest[7].(*time.Time)) = now
		*(dest[8].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(repoRow)

	forecast, err := svc.Forecast(ctx, "repo-1")
	require.NoError(t, err)
	assert.True(t, forecast.ForecastAvailable)
	assert.Greater(t, forecast.GrowthRate, 0.0)
	assert.NotEmpty(t, forecast.MaxDate)
	assert.Greater(t, forecast.DaysUntilMax, 0)
	db.AssertExpectations(t)
}

// ---------- GrowthChart ----------

func TestAnalyticsService_GrowthChart_TooFewPoints(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(backupJobScanFunc("job-1", base, "1.00 GB")), nil)

	chart, err := svc.GrowthChart(ctx, "repo-1")
	require.NoError(t, err)
	assert.False(t, chart.Available)
	assert.NotEmpty(t, chart.Message)
	db.AssertExpectations(t)
}

func TestAnalyticsService_GrowthChart_ConvertsToGB(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 8, 30, 0, 0, time.UTC)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(
			backupJobScanFunc("job-1", base, "512.00 MB"),
			backupJobScanFunc("job-2", base.AddDate(0, 0, 1), "1.00 GB"),
		), nil)

	chart, err := svc.GrowthChart(ctx, "repo-1")
	require.NoError(t, err)
	assert.True(t, chart.Available)
	require.Len(t, chart.Data, 2)
	assert.InDelta(t, 0.5, chart.Data[0], 0.01)
	assert.InDelta(t, 1.0, chart.Data[1], 0.01)
	assert.Equal(t, "2026-01-01 08:30", chart.Labels[0])
	db.AssertExpectations(t)
}

// ---------- FrequencyChart ----------

func TestAnalyticsService_FrequencyChart_CountsByWeekdayAndHour(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	// 2026-01-05 is a Monday.
	monday := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 1, 11, 23, 0, 0, 0, time.UTC)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(
			backupJobScanFunc("job-1", monday, "1.00 GB"),
			backupJobScanFunc("job-2", monday.Add(time.Hour), "1.00 GB"),
			backupJobScanFunc("job-3", sunday, "1.00 GB"),
		), nil)

	chart, err := svc.FrequencyChart(ctx, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, "Monday", chart.ByDay.Labels[0])
	assert.Equal(t, 2, chart.ByDay.Data[0])
	assert.Equal(t, 1, chart.ByDay.Data[6])
	assert.Equal(t, 1, chart.ByHour.Data[3])
	assert.Equal(t, 1, chart.ByHour.Data[4])
	assert.Equal(t, 1, chart.ByHour.Data[23])
	db.AssertExpectations(t)
}

// ---------- RepositoryStats ----------

func TestAnalyticsService_RepositoryStats_NoBackups(t *testing.T) {
	db := &mockDB{}
	svc := newTestAnalyticsService(db)
	ctx := context.Background()

	countsRow := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int)) = 0
		*(dest[1].(*int)) = 0
		*(dest[2].(*int)) = 0
		return nil
	}}
	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "count(*)")
	}), mock.Anything).Return(countsRow)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{scanFunc: func(dest ...any) error {
		return assert.AnError
	}})
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newEmptyMockRows(), nil)

	stats, err := svc.RepositoryStats(ctx, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalJobs)
	assert.Equal(t, "unknown", stats.LatestSize)
	assert.Equal(t, "unknown", stats.AverageSize)
	assert.Nil(t, stats.LastBackupTime)
}
