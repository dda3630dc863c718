package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewDashboardService(t *testing.T) {
	db := &mockDB{}
	svc := NewDashboardService(db)
	require.NotNil(t, svc)
}

func TestDashboardService_Stats_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewDashboardService(db)
	ctx := context.Background()

	countRow := &mockRow{
		scanFunc: func(dest ...any) error {
			*(dest[0].(*int)) = 3  // repositories
			*(dest[1].(*int)) = 2  // sources
			*(dest[2].(*int)) = 4  // schedules
			*(dest[3].(*int)) = 1  // active mounts
			*(dest[4].(*int)) = 0  // orphaned mounts
			*(dest[5].(*int)) = 42 // jobs
			*(dest[6].(*int)) = 1  // running jobs
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.Anything, []any{"user-1"}).Return(countRow)

	statusRows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = "success"
			*(dest[1].(*int)) = 40
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*string)) = "failed"
			*(dest[1].(*int)) = 2
			return nil
		},
	)
	typeRows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = "create"
			*(dest[1].(*int)) = 39
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*string)) = "prune"
			*(dest[1].(*int)) = 3
			return nil
		},
	)
	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "GROUP BY status")
	}), []any{"user-1"}).Return(statusRows, nil)
	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "GROUP BY job_type")
	}), []any{"user-1"}).Return(typeRows, nil)

	stats, err := svc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Repositories)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 4, stats.Schedules)
	assert.Equal(t, 1, stats.ActiveMounts)
	assert.Equal(t, 42, stats.TotalJobs)
	assert.Equal(t, 1, stats.RunningJobs)
	require.Len(t, stats.JobsByStatus, 2)
	assert.Equal(t, StatusCount{Status: "success", Count: 40}, stats.JobsByStatus[0])
	require.Len(t, stats.JobsByType, 2)
	assert.Equal(t, StatusCount{Status: "create", Count: 39}, stats.JobsByType[0])
}

func TestDashboardService_Stats_CountsQueryError(t *testing.T) {
	db := &mockDB{}
	svc := NewDashboardService(db)
	ctx := context.Background()

	errRow := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("connection refused")
	}}
	db.On("QueryRow", ctx, mock.Anything, []any{"user-1"}).Return(errRow)

	stats, err := svc.Stats(ctx, "user-1")
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.Contains(t, err.Error(), "dashboard counts")
}
