package model

import "time"

// Mount is a filesystem projection of an archive's contents. The mount path is
// unique while the mount is active; orphan detection is purely age-based.
type Mount struct {
	ID             string     `json:"id"`
	JobID          *string    `json:"job_id,omitempty"`
	RepositoryID   string     `json:"repository_id"`
	UserID         string     `json:"user_id"`
	ArchiveName    string     `json:"archive_name"`
	MountPath      string     `json:"mount_path"`
	PID            *int       `json:"pid,omitempty"`
	Active         bool       `json:"active"`
	Orphaned       bool       `json:"orphaned"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	UnmountedAt    *time.Time `json:"unmounted_at,omitempty"`
}

// Age returns how long the mount has existed, relative to now.
func (m *Mount) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}
