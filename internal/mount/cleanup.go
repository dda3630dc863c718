package mount

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/edvin/borgdesk/internal/logging"
	"github.com/edvin/borgdesk/internal/metrics"
)

// Cleaner periodically unmounts or flags orphaned mounts.
type Cleaner struct {
	manager *Manager
	cron    *cron.Cron
}

// NewCleaner builds the cleanup scheduler. Call Start to begin.
func NewCleaner(manager *Manager) *Cleaner {
	cronLog := logging.NewCronLogger(manager.log)
	return &Cleaner{
		manager: manager,
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
			cron.WithLogger(cronLog),
		),
	}
}

// Start schedules the cleanup pass and runs one immediately so a restart
// never leaves orphans waiting a full interval.
func (c *Cleaner) Start() error {
	cfg := c.manager.cfg
	if !cfg.MountCleanupEnabled {
		c.manager.log.Info().Msg("mount cleanup disabled")
		return nil
	}

	spec := fmt.Sprintf("@every %dh", cfg.MountCleanupIntervalHours)
	if _, err := c.cron.AddFunc(spec, func() {
		c.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule mount cleanup: %w", err)
	}
	c.cron.Start()
	c.manager.log.Info().
		Int("interval_hours", cfg.MountCleanupIntervalHours).
		Int("max_age_hours", cfg.MountMaxAgeHours).
		Bool("auto_unmount", cfg.AutoUnmountOrphaned).
		Msg("mount cleanup scheduled")

	go c.RunOnce(context.Background())
	return nil
}

// Stop halts the schedule, waiting for a running pass to finish.
func (c *Cleaner) Stop() {
	<-c.cron.Stop().Done()
}

// RunOnce performs a single cleanup pass. Unmount failures are logged and
// left for the next pass.
func (c *Cleaner) RunOnce(ctx context.Context) {
	m := c.manager
	log := m.log.With().Str("task", "cleanup").Logger()

	orphaned, err := m.OrphanedMounts(ctx, m.cfg.MountMaxAge())
	if err != nil {
		log.Error().Err(err).Msg("list orphaned mounts")
		metrics.MountCleanupRuns.WithLabelValues("error").Inc()
		return
	}
	if len(orphaned) == 0 {
		log.Debug().Msg("no orphaned mounts")
		metrics.MountCleanupRuns.WithLabelValues("ok").Inc()
		return
	}

	log.Info().Int("count", len(orphaned)).Int("max_age_hours", m.cfg.MountMaxAgeHours).Msg("found orphaned mounts")

	result := "ok"
	for i := range orphaned {
		record := &orphaned[i]
		if !m.cfg.AutoUnmountOrphaned {
			if err := m.svcs.Mount.MarkOrphaned(ctx, record.ID); err != nil {
				log.Error().Err(err).Str("mount_id", record.ID).Msg("flag orphaned mount")
				result = "error"
			}
			continue
		}

		if err := m.Unmount(ctx, record.ID); err != nil {
			log.Error().Err(err).
				Str("mount_id", record.ID).
				Str("path", record.MountPath).
				Msg("unmount orphaned mount, will retry next pass")
			result = "error"
		}
	}
	metrics.MountCleanupRuns.WithLabelValues(result).Inc()
}
