package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/borgdesk/internal/model"
)

func jobScanFunc(id, jobType, status string, created time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = jobType
		*(dest[2].(*string)) = status
		*(dest[3].(*string)) = "repo-1"
		*(dest[4].(*string)) = "user-1"
		*(dest[7].(*string)) = "some output"
		*(dest[11].(*time.Time)) = created
		return nil
	}
}

func TestJobService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	job := &model.Job{
		ID:           "job-1",
		JobType:      model.JobTypeCreate,
		Status:       model.JobStatusPending,
		RepositoryID: "repo-1",
		UserID:       "user-1",
		CreatedAt:    time.Now(),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, job)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestJobService_Create_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := svc.Create(ctx, &model.Job{ID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create job")
	db.AssertExpectations(t)
}

func TestJobService_GetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: jobScanFunc("job-1", model.JobTypeCreate, model.JobStatusSuccess, now)}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", result.ID)
	assert.Equal(t, model.JobTypeCreate, result.JobType)
	assert.Equal(t, model.JobStatusSuccess, result.Status)
	assert.True(t, result.Finished())
	db.AssertExpectations(t)
}

func TestJobService_ListByUser_ExcludesListJobs(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	var capturedArgs []any
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedArgs = args.Get(2).([]any)
		}).
		Return(newEmptyMockRows(), nil)

	_, err := svc.ListByUser(ctx, "user-1", 50)
	require.NoError(t, err)
	require.Len(t, capturedArgs, 3)
	assert.Equal(t, model.JobTypeList, capturedArgs[1])
	db.AssertExpectations(t)
}

func TestJobService_ListByUser_DefaultLimit(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	var capturedArgs []any
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedArgs = args.Get(2).([]any)
		}).
		Return(newEmptyMockRows(), nil)

	_, err := svc.ListByUser(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 100, capturedArgs[2])
	db.AssertExpectations(t)
}

func TestJobService_LatestSuccessful_NoneIsNotAnError(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.LatestSuccessful(ctx, "repo-1", model.JobTypeCreate)
	require.NoError(t, err)
	assert.Nil(t, result)
	db.AssertExpectations(t)
}

func TestJobService_Cancel_OnlyRunningJobs(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.Cancel(ctx, "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
	db.AssertExpectations(t)
}

func TestJobService_Cancel_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.Cancel(ctx, "job-1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestJobService_Finish_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	meta, _ := json.Marshal(JobMetadata{})
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Finish(ctx, "job-1", model.JobStatusSuccess, "done", meta)
	require.NoError(t, err)
	db.AssertExpectations(t)
}
