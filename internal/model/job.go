package model

import (
	"encoding/json"
	"time"
)

const (
	JobTypeCreate  = "create"
	JobTypePrune   = "prune"
	JobTypeList    = "list"
	JobTypeMount   = "mount"
	JobTypeUnmount = "unmount"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSuccess   = "success"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Job is one run of the backup engine. Log output and extracted statistics are
// kept on the row so failures stay diagnosable after the fact.
type Job struct {
	ID           string          `json:"id"`
	JobType      string          `json:"job_type"`
	Status       string          `json:"status"`
	RepositoryID string          `json:"repository_id"`
	UserID       string          `json:"user_id"`
	SourceID     *string         `json:"source_id,omitempty"`
	ArchiveName  *string         `json:"archive_name,omitempty"`
	LogOutput    string          `json:"log_output,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Finished reports whether the job has reached a terminal status.
func (j *Job) Finished() bool {
	switch j.Status {
	case JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// DecodeMetadata unmarshals the job's metadata into v. A job without metadata
// leaves v untouched.
func (j *Job) DecodeMetadata(v any) error {
	if len(j.Metadata) == 0 {
		return nil
	}
	return json.Unmarshal(j.Metadata, v)
}
