package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/borgdesk/internal/borg"
	"github.com/edvin/borgdesk/internal/config"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/model"
	"github.com/edvin/borgdesk/internal/platform"
)

// Manager mounts archives as FUSE filesystems under the configured base
// directory and tracks them in the mounts table.
type Manager struct {
	cfg    *config.Config
	engine borg.Engine
	svcs   *core.Services
	log    zerolog.Logger

	// mountSettle is how long to wait before re-checking an empty mount
	// point. Shortened in tests.
	mountSettle time.Duration

	// isMounted probes whether a path is a live mount point. Stubbed in
	// tests.
	isMounted func(path string) bool
}

func NewManager(cfg *config.Config, engine borg.Engine, svcs *core.Services, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		engine:      engine,
		svcs:        svcs,
		log:         log.With().Str("component", "mount").Logger(),
		mountSettle: 5 * time.Second,
		isMounted:   isMountPoint,
	}
}

// MountPath derives a unique mount directory for an archive.
func (m *Manager) MountPath(archiveName, userID string) string {
	stamp := time.Now().Format("20060102_150405")
	dir := fmt.Sprintf("archive_mount_%s_%s_%s", platform.SafeName(archiveName), platform.SafeName(userID), stamp)
	return filepath.Join(m.cfg.MountBaseDir, dir)
}

// Mount projects an archive onto the filesystem and records it. It fails when
// the archive is already mounted or the derived path is taken by an active
// mount.
func (m *Manager) Mount(ctx context.Context, userID, repoID, archiveName string) (*model.Mount, error) {
	repo, err := m.svcs.Repository.GetByID(ctx, repoID)
	if err != nil {
		return nil, err
	}

	if existing, err := m.svcs.Mount.ActiveByArchive(ctx, repoID, archiveName); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("archive %s is already mounted at %s", archiveName, existing.MountPath)
	}

	path := m.MountPath(archiveName, userID)
	if inUse, err := m.svcs.Mount.PathInUse(ctx, path); err != nil {
		return nil, err
	} else if inUse {
		return nil, fmt.Errorf("mount path %s is already in use", path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create mount point %s: %w", path, err)
	}

	cmd := borg.MountCommand(repo.Path, archiveName, path)
	if repo.Passphrase != nil && *repo.Passphrase != "" {
		cmd.Env = append(cmd.Env, borg.PassphraseEnv(*repo.Passphrase))
	}

	proc, err := m.engine.Start(cmd)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("start mount: %w", err)
	}

	if err := m.watchMountStartup(proc, path); err != nil {
		_ = proc.Terminate()
		os.Remove(path)
		return nil, err
	}

	pid := proc.PID
	record := &model.Mount{
		ID:           platform.NewID(),
		RepositoryID: repoID,
		UserID:       userID,
		ArchiveName:  archiveName,
		MountPath:    path,
		PID:          &pid,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := m.svcs.Mount.Create(ctx, record); err != nil {
		_ = proc.Terminate()
		m.unmountPath(path)
		os.Remove(path)
		return nil, err
	}

	m.log.Info().Str("archive", archiveName).Str("path", path).Int("pid", pid).Msg("archive mounted")
	return record, nil
}

// watchMountStartup reads the first seconds of mount output for failure
// markers, then verifies the mount point is non-empty.
func (m *Manager) watchMountStartup(proc *borg.Process, path string) error {
	var output strings.Builder
	for i := 0; i < 10; i++ {
		line, ok := proc.ReadLine(time.Second)
		if ok {
			output.WriteString(line + "\n")
			lower := strings.ToLower(line)
			if strings.Contains(lower, "error") || strings.Contains(lower, "critical") {
				return fmt.Errorf("mount failed: %s", line)
			}
		}

		exited, err := proc.Exited()
		if exited {
			if err != nil {
				return fmt.Errorf("mount process exited: %w (output: %s)", err, output.String())
			}
			break
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read mount point %s: %w", path, err)
	}
	if len(entries) == 0 {
		time.Sleep(m.mountSettle)
		entries, err = os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("read mount point %s: %w", path, err)
		}
		if len(entries) == 0 {
			return fmt.Errorf("mount point %s is empty after mounting", path)
		}
	}
	return nil
}

// Unmount detaches a mount and closes its record. It is idempotent: an
// inactive record, a missing path, or a path that is no longer mounted are
// all no-ops that still converge the record to unmounted.
func (m *Manager) Unmount(ctx context.Context, mountID string) error {
	record, err := m.svcs.Mount.GetByID(ctx, mountID)
	if err != nil {
		return err
	}
	if !record.Active {
		return nil
	}

	log := m.log.With().Str("mount_id", mountID).Str("path", record.MountPath).Logger()

	if _, statErr := os.Stat(record.MountPath); os.IsNotExist(statErr) {
		log.Info().Msg("mount path missing, closing record")
		return m.closeRecord(ctx, record)
	}
	if !m.isMounted(record.MountPath) {
		log.Info().Msg("path no longer mounted, closing record")
		return m.closeRecord(ctx, record)
	}

	if record.PID != nil {
		if err := borg.TerminatePID(*record.PID); err == nil {
			time.Sleep(2 * time.Second)
		}
	}

	if err := m.unmountPath(record.MountPath); err != nil {
		return fmt.Errorf("unmount %s: %w", record.MountPath, err)
	}

	os.Remove(record.MountPath)
	log.Info().Msg("archive unmounted")
	return m.closeRecord(ctx, record)
}

func (m *Manager) closeRecord(ctx context.Context, record *model.Mount) error {
	return m.svcs.Mount.MarkUnmounted(ctx, record.ID)
}

// unmountPath detaches a FUSE mount, escalating from fusermount through
// force variants until the path is no longer a mount point.
func (m *Manager) unmountPath(path string) error {
	attempts := [][]string{
		{"fusermount", "-u", path},
		{"umount", path},
		{"fusermount", "-u", "-z", path},
		{"umount", "-f", path},
	}
	var lastErr error
	for _, argv := range attempts {
		if !m.isMounted(path) {
			return nil
		}
		if err := runCommand(argv, 30*time.Second); err != nil {
			lastErr = err
			continue
		}
		if !m.isMounted(path) {
			return nil
		}
	}
	if !m.isMounted(path) {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("%s is still mounted", path)
}

// ActiveMounts returns active mount records, repairing rows whose path is no
// longer mounted.
func (m *Manager) ActiveMounts(ctx context.Context) ([]model.Mount, error) {
	rows, err := m.svcs.Mount.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return m.filterMounted(ctx, rows), nil
}

// OrphanedMounts returns active mounts older than maxAge.
func (m *Manager) OrphanedMounts(ctx context.Context, maxAge time.Duration) ([]model.Mount, error) {
	rows, err := m.svcs.Mount.ListOlderThan(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return nil, err
	}
	return m.filterMounted(ctx, rows), nil
}

// filterMounted drops rows whose path is no longer a live mount, closing
// their records so the table converges with the system state.
func (m *Manager) filterMounted(ctx context.Context, rows []model.Mount) []model.Mount {
	live := rows[:0]
	for i := range rows {
		if m.isMounted(rows[i].MountPath) {
			live = append(live, rows[i])
			continue
		}
		if err := m.svcs.Mount.MarkUnmounted(ctx, rows[i].ID); err != nil {
			m.log.Warn().Err(err).Str("mount_id", rows[i].ID).Msg("close stale mount record")
		}
	}
	return live
}
