package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/metrics"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/platform"
)

// Runner launches backup engine jobs in background goroutines and persists
// their output and extracted statistics.
type Runner struct {
	engine borg.Engine
	svcs   *core.Services
	log    zerolog.Logger
}

func New(engine borg.Engine, svcs *core.Services, log zerolog.Logger) *Runner {
	return &Runner{
		engine: engine,
		svcs:   svcs,
		log:    log.With().Str("component", "runner").Logger(),
	}
}

// StartBackup creates a pending create job and runs it in the background.
// archiveName defaults to a timestamped name when empty.
func (r *Runner) StartBackup(ctx context.Context, userID, repoID, sourceID, archiveName string) (*model.Job, error) {
	repo, err := r.svcs.Repository.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}
	source, err := r.svcs.Source.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if archiveName == "" {
		archiveName = time.Now().Format("backup-2006-01-02_150405")
	}

	job := newJob(model.JobTypeCreate, userID, repoID)
	job.SourceID = &source.ID
	job.ArchiveName = &archiveName
	if err := r.svcs.Job.Create(ctx, job); err != nil {
		return nil, err
	}

	cmd := borg.CreateCommand(repo.Path, archiveName, source.FormattedPath())
	go r.run(job, cmd, repo)
	return job, nil
}

// StartPrune creates a pending prune job and runs it in the background.
func (r *Runner) StartPrune(ctx context.Context, userID, repoID string, opts borg.PruneOptions) (*model.Job, error) {
	repo, err := r.svcs.Repository.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}

	job := newJob(model.JobTypePrune, userID, repoID)
	if err := r.svcs.Job.Create(ctx, job); err != nil {
		return nil, err
	}

	go r.run(job, borg.PruneCommand(repo.Path, opts), repo)
	return job, nil
}

// StartList creates a list job to refresh the repository's archive metadata.
func (r *Runner) StartList(ctx context.Context, userID, repoID string) (*model.Job, error) {
	repo, err := r.svcs.Repository.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}

	job := newJob(model.JobTypeList, userID, repoID)
	if err := r.svcs.Job.Create(ctx, job); err != nil {
		return nil, err
	}

	go r.run(job, borg.ListCommand(repo.Path), repo)
	return job, nil
}

func newJob(jobType, userID, repoID string) *model.Job {
	return &model.Job{
		ID:           platform.NewID(),
		JobType:      jobType,
		Status:       model.JobStatusPending,
		RepositoryID: repoID,
		UserID:       userID,
		CreatedAt:    time.Now(),
	}
}

// run executes one job to completion. It owns its own context: the HTTP
// request that created the job has long since returned.
func (r *Runner) run(job *model.Job, cmd borg.Command, repo *model.Repository) {
	ctx := context.Background()
	log := r.log.With().Str("job_id", job.ID).Str("job_type", job.JobType).Logger()

	if repo.Passphrase != nil && *repo.Passphrase != "" {
		cmd.Env = append(cmd.Env, borg.PassphraseEnv(*repo.Passphrase))
	}

	if err := r.svcs.Job.MarkRunning(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("mark job running")
		return
	}
	start := time.Now()
	log.Info().Msg("job started")

	output, runErr := r.engine.Run(ctx, cmd, func(chunk string) {
		if err := r.svcs.Job.AppendOutput(ctx, job.ID, chunk); err != nil {
			log.Warn().Err(err).Msg("append job output")
		}
	})

	metrics.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())

	// A cancelled job keeps its status; the late result is discarded.
	status, err := r.svcs.Job.Status(ctx, job.ID)
	if err != nil {
		log.Error().Err(err).Msg("read job status")
		return
	}
	if status == model.JobStatusCancelled {
		log.Info().Msg("job was cancelled, discarding result")
		return
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("job failed")
		failure := output + "\n\nError: " + runErr.Error()
		if err := r.svcs.Job.Finish(ctx, job.ID, model.JobStatusFailed, failure, nil); err != nil {
			log.Error().Err(err).Msg("finish failed job")
		}
		metrics.JobsTotal.WithLabelValues(job.JobType, model.JobStatusFailed).Inc()
		return
	}

	metadata := r.extractMetadata(job.JobType, output, log)
	if err := r.svcs.Job.Finish(ctx, job.ID, model.JobStatusSuccess, output, metadata); err != nil {
		log.Error().Err(err).Msg("finish job")
		return
	}
	metrics.JobsTotal.WithLabelValues(job.JobType, model.JobStatusSuccess).Inc()
	log.Info().Dur("duration", time.Since(start)).Msg("job finished")
}

// extractMetadata pulls structured data out of the raw output. Extraction
// failures are not fatal; the job still succeeds with its log retained.
func (r *Runner) extractMetadata(jobType, output string, log zerolog.Logger) []byte {
	var meta core.JobMetadata

	switch jobType {
	case model.JobTypeCreate, model.JobTypePrune:
		if stats := borg.ExtractStats(output); !stats.Empty() {
			meta.Stats = stats
		}
	case model.JobTypeList:
		archives, err := borg.ParseArchiveList(output)
		if err != nil {
			log.Warn().Err(err).Msg("parse archive list")
			return nil
		}
		meta.Archives = archives
	}

	if meta.Stats == nil && meta.Archives == nil {
		return nil
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		log.Warn().Err(err).Msg("encode job metadata")
		return nil
	}
	return encoded
}

// Cancel marks a running job cancelled.
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	job, err := r.svcs.Job.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := r.svcs.Job.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	metrics.JobsTotal.WithLabelValues(job.JobType, model.JobStatusCancelled).Inc()
	return nil
}
