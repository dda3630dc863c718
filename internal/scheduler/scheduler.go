package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/logging"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/platform"
	"github.com/edvin/borgdesk/internal/runner"
)

// refreshInterval is how often the dispatcher reloads schedules from the
// database, so edits take effect without a restart.
const refreshInterval = time.Minute

// jobPollInterval is how often a fired schedule polls its backup job while
// waiting to chain a prune.
const jobPollInterval = 5 * time.Second

// Dispatcher keeps the cron runtime in sync with the schedules table and
// fires backup jobs on their recurrence rules.
type Dispatcher struct {
	svcs   *core.Services
	runner *runner.Runner
	log    zerolog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]entry

	stop chan struct{}
	done chan struct{}
}

type entry struct {
	id   cron.EntryID
	expr string
}

func New(svcs *core.Services, run *runner.Runner, log zerolog.Logger) *Dispatcher {
	cronLog := logging.NewCronLogger(log)
	return &Dispatcher{
		svcs:   svcs,
		runner: run,
		log:    log.With().Str("component", "scheduler").Logger(),
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
			cron.WithLogger(cronLog),
		),
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start loads the active schedules and begins dispatching. It keeps
// refreshing until Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.Refresh(ctx); err != nil {
		return err
	}
	d.cron.Start()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := d.Refresh(context.Background()); err != nil {
					d.log.Error().Err(err).Msg("refresh schedules")
				}
			case <-d.stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts dispatching, waiting for a running pass to finish.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
	<-d.cron.Stop().Done()
}

// Refresh reconciles the cron entries with the active schedules: new and
// changed schedules are (re)registered, deactivated ones removed.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	schedules, err := d.svcs.Schedule.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active schedules: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]bool, len(schedules))
	for i := range schedules {
		sc := schedules[i]
		expr, err := sc.CronExpression()
		if err != nil {
			d.log.Warn().Err(err).Str("schedule_id", sc.ID).Msg("skipping schedule")
			continue
		}
		seen[sc.ID] = true

		if existing, ok := d.entries[sc.ID]; ok {
			if existing.expr == expr {
				continue
			}
			d.cron.Remove(existing.id)
		}

		id, err := d.cron.AddFunc(expr, func() { d.fire(sc) })
		if err != nil {
			d.log.Error().Err(err).Str("schedule_id", sc.ID).Str("expr", expr).Msg("register schedule")
			continue
		}
		d.entries[sc.ID] = entry{id: id, expr: expr}
		d.log.Info().Str("schedule_id", sc.ID).Str("name", sc.Name).Str("expr", expr).Msg("schedule registered")
	}

	for scheduleID, e := range d.entries {
		if !seen[scheduleID] {
			d.cron.Remove(e.id)
			delete(d.entries, scheduleID)
			d.log.Info().Str("schedule_id", scheduleID).Msg("schedule removed")
		}
	}
	return nil
}

// fire runs one occurrence of a schedule: a backup job, then a prune when
// the schedule asks for one.
func (d *Dispatcher) fire(sc model.Schedule) {
	ctx := context.Background()
	log := d.log.With().Str("schedule_id", sc.ID).Str("name", sc.Name).Logger()

	ranAt := time.Now()
	archiveName := d.archiveName(sc, ranAt)

	job, err := d.runner.StartBackup(ctx, sc.UserID, sc.RepositoryID, sc.SourceID, archiveName)
	if err != nil {
		log.Error().Err(err).Msg("start scheduled backup")
		return
	}
	log.Info().Str("job_id", job.ID).Str("archive", archiveName).Msg("scheduled backup started")

	if err := d.svcs.Schedule.RecordRun(ctx, sc.ID, ranAt, d.nextRun(sc.ID)); err != nil {
		log.Warn().Err(err).Msg("record schedule run")
	}

	if !sc.AutoPrune {
		return
	}
	status, err := d.waitForJob(ctx, job.ID)
	if err != nil {
		log.Warn().Err(err).Msg("wait for backup before prune")
		return
	}
	if status != model.JobStatusSuccess {
		log.Warn().Str("status", status).Msg("backup did not succeed, skipping prune")
		return
	}

	opts := borg.PruneOptions{
		KeepDaily:   sc.KeepDaily,
		KeepWeekly:  sc.KeepWeekly,
		KeepMonthly: sc.KeepMonthly,
	}
	if sc.ArchivePrefix != nil && *sc.ArchivePrefix != "" {
		opts.Prefix = *sc.ArchivePrefix
	}
	pruneJob, err := d.runner.StartPrune(ctx, sc.UserID, sc.RepositoryID, opts)
	if err != nil {
		log.Error().Err(err).Msg("start scheduled prune")
		return
	}
	log.Info().Str("job_id", pruneJob.ID).Msg("scheduled prune started")
}

func (d *Dispatcher) archiveName(sc model.Schedule, now time.Time) string {
	prefix := platform.SafeName(sc.Name)
	if sc.ArchivePrefix != nil && *sc.ArchivePrefix != "" {
		prefix = *sc.ArchivePrefix
	}
	return fmt.Sprintf("%s-%s", prefix, now.Format("2006-01-02_150405"))
}

// nextRun reads the next scheduled time from the registered cron entry.
func (d *Dispatcher) nextRun(scheduleID string) *time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[scheduleID]
	if !ok {
		return nil
	}
	next := d.cron.Entry(e.id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// waitForJob polls until the job leaves the queued and running states.
func (d *Dispatcher) waitForJob(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			status, err := d.svcs.Job.Status(ctx, jobID)
			if err != nil {
				return "", err
			}
			if status != model.JobStatusPending && status != model.JobStatusRunning {
				return status, nil
			}
		}
	}
}
