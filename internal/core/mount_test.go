package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/borgdesk/internal/model"
)

func mountScanFunc(id, path string, created time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[2].(*string)) = "repo-1"
		*(dest[3].(*string)) = "user-1"
		*(dest[4].(*string)) = "backup-2026-01-01"
		*(dest[5].(*string)) = path
		*(dest[7].(*bool)) = true
		*(dest[9].(*time.Time)) = created
		*(dest[10].(*time.Time)) = created
		return nil
	}
}

func TestMountService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	pid := 4242
	m := &model.Mount{
		ID:           "mount-1",
		RepositoryID: "repo-1",
		UserID:       "user-1",
		ArchiveName:  "backup-2026-01-01",
		MountPath:    "/var/lib/borgdesk/mounts/archive_mount_backup-2026-01-01_user-1_1700000000",
		PID:          &pid,
		CreatedAt:    time.Now(),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, m)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestMountService_ActiveByArchive_Found(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: mountScanFunc("mount-1", "/mnt/a", now)}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.ActiveByArchive(ctx, "repo-1", "backup-2026-01-01")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "mount-1", result.ID)
	assert.True(t, result.Active)
	db.AssertExpectations(t)
}

func TestMountService_ActiveByArchive_NoneIsNotAnError(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	result, err := svc.ActiveByArchive(ctx, "repo-1", "backup-2026-01-01")
	require.NoError(t, err)
	assert.Nil(t, result)
	db.AssertExpectations(t)
}

func TestMountService_PathInUse(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int)) = 1
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	inUse, err := svc.PathInUse(ctx, "/mnt/a")
	require.NoError(t, err)
	assert.True(t, inUse)
	db.AssertExpectations(t)
}

func TestMountService_CountActive(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "count(*)") && strings.Contains(sql, "active")
	}), mock.Anything).Return(&mockRow{
		scanFunc: func(dest ...any) error {
			*(dest[0].(*int)) = 3
			return nil
		},
	})

	n, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMountService_ListOlderThan_PassesCutoff(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	cutoff := time.Now().Add(-24 * time.Hour)
	var capturedArgs []any
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedArgs = args.Get(2).([]any)
		}).
		Return(newEmptyMockRows(), nil)

	result, err := svc.ListOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, result)
	require.Len(t, capturedArgs, 1)
	assert.Equal(t, cutoff, capturedArgs[0])
	db.AssertExpectations(t)
}

func TestMountService_MarkUnmounted_AlreadyInactiveIsNoop(t *testing.T) {
	db := &mockDB{}
	svc := NewMountService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.MarkUnmounted(ctx, "mount-1")
	require.NoError(t, err)
	db.AssertExpectations(t)
}
