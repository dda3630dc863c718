package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/borgdesk/internal/model"
)

type MountService struct {
	db DB
}

func NewMountService(db DB) *MountService {
	return &MountService{db: db}
}

const mountColumns = `id, job_id, repository_id, user_id, archive_name, mount_path, pid, active, orphaned, created_at, last_accessed_at, unmounted_at`

func scanMount(row interface{ Scan(...any) error }) (*model.Mount, error) {
	var m model.Mount
	err := row.Scan(&m.ID, &m.JobID, &m.RepositoryID, &m.UserID, &m.ArchiveName,
		&m.MountPath, &m.PID, &m.Active, &m.Orphaned,
		&m.CreatedAt, &m.LastAccessedAt, &m.UnmountedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MountService) Create(ctx context.Context, m *model.Mount) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO mounts (id, job_id, repository_id, user_id, archive_name, mount_path, pid, active, created_at, last_accessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $8)`,
		m.ID, m.JobID, m.RepositoryID, m.UserID, m.ArchiveName, m.MountPath, m.PID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create mount: %w", err)
	}
	return nil
}

func (s *MountService) GetByID(ctx context.Context, id string) (*model.Mount, error) {
	m, err := scanMount(s.db.QueryRow(ctx,
		`SELECT `+mountColumns+` FROM mounts WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get mount %s: %w", id, err)
	}
	return m, nil
}

// ActiveByArchive returns the active mount for an archive, or nil when the
// archive is not mounted.
func (s *MountService) ActiveByArchive(ctx context.Context, repoID, archiveName string) (*model.Mount, error) {
	m, err := scanMount(s.db.QueryRow(ctx,
		`SELECT `+mountColumns+` FROM mounts
		 WHERE repository_id = $1 AND archive_name = $2 AND active`,
		repoID, archiveName))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active mount for %s: %w", archiveName, err)
	}
	return m, nil
}

// PathInUse reports whether an active mount already occupies the path.
func (s *MountService) PathInUse(ctx context.Context, path string) (bool, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM mounts WHERE mount_path = $1 AND active`, path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check mount path: %w", err)
	}
	return n > 0, nil
}

// CountActive returns the number of active mount rows across all users.
func (s *MountService) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM mounts WHERE active`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active mounts: %w", err)
	}
	return n, nil
}

func (s *MountService) ListActive(ctx context.Context) ([]model.Mount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+mountColumns+` FROM mounts WHERE active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active mounts: %w", err)
	}
	defer rows.Close()
	return collectMounts(rows)
}

func (s *MountService) ListActiveByUser(ctx context.Context, userID string) ([]model.Mount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+mountColumns+` FROM mounts
		 WHERE user_id = $1 AND active ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user mounts: %w", err)
	}
	defer rows.Close()
	return collectMounts(rows)
}

// ListOlderThan returns active mounts created before the cutoff, oldest first.
func (s *MountService) ListOlderThan(ctx context.Context, cutoff time.Time) ([]model.Mount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+mountColumns+` FROM mounts
		 WHERE active AND created_at < $1 ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale mounts: %w", err)
	}
	defer rows.Close()
	return collectMounts(rows)
}

// Touch bumps last_accessed_at so browsing keeps a mount from looking idle.
func (s *MountService) Touch(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE mounts SET last_accessed_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch mount %s: %w", id, err)
	}
	return nil
}

// MarkUnmounted closes the mount record. It is safe to call on an already
// closed record.
func (s *MountService) MarkUnmounted(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE mounts SET active = false, orphaned = false, pid = NULL, unmounted_at = now()
		 WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("mark mount %s unmounted: %w", id, err)
	}
	return nil
}

// MarkOrphaned flags a stale mount without unmounting it.
func (s *MountService) MarkOrphaned(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE mounts SET orphaned = true WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("mark mount %s orphaned: %w", id, err)
	}
	return nil
}

func collectMounts(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Mount, error) {
	var mounts []model.Mount
	for rows.Next() {
		m, err := scanMount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mount: %w", err)
		}
		mounts = append(mounts, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mounts: %w", err)
	}
	return mounts, nil
}
