package mount

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// SystemMount is one entry from the kernel mount table.
type SystemMount struct {
	Device     string `json:"device"`
	MountPoint string `json:"mount_point"`
	Type       string `json:"type"`
}

// SystemMounts lists every mount in the system, from /proc/self/mounts with
// the mount command as fallback.
func SystemMounts() ([]SystemMount, error) {
	if data, err := os.ReadFile("/proc/self/mounts"); err == nil {
		return parseMountTable(string(data)), nil
	}

	out, err := exec.Command("mount").Output()
	if err != nil {
		return nil, fmt.Errorf("list system mounts: %w", err)
	}
	return parseMountOutput(string(out)), nil
}

// parseMountTable parses /proc/self/mounts format: device point type opts 0 0.
// Octal escapes in paths (spaces become \040) are decoded.
func parseMountTable(data string) []SystemMount {
	var mounts []SystemMount
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, SystemMount{
			Device:     fields[0],
			MountPoint: unescapeMountPath(fields[1]),
			Type:       fields[2],
		})
	}
	return mounts
}

// parseMountOutput parses "device on point type fstype (opts)" lines.
func parseMountOutput(out string) []SystemMount {
	var mounts []SystemMount
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[1] != "on" {
			continue
		}
		mounts = append(mounts, SystemMount{
			Device:     fields[0],
			MountPoint: fields[2],
			Type:       fields[4],
		})
	}
	return mounts
}

func unescapeMountPath(p string) string {
	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return replacer.Replace(p)
}

// isMountPoint reports whether path appears in the system mount table.
func isMountPoint(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	mounts, err := SystemMounts()
	if err != nil {
		return false
	}
	for _, m := range mounts {
		if m.MountPoint == path {
			return true
		}
	}
	return false
}

// BorgMounts returns fuse mounts under the manager's base directory,
// regardless of whether the mounts table knows about them.
func (m *Manager) BorgMounts() ([]SystemMount, error) {
	mounts, err := SystemMounts()
	if err != nil {
		return nil, err
	}
	var found []SystemMount
	for _, sm := range mounts {
		if !strings.Contains(strings.ToLower(sm.Type), "fuse") {
			continue
		}
		if !strings.HasPrefix(sm.MountPoint, m.cfg.MountBaseDir) {
			continue
		}
		found = append(found, sm)
	}
	return found, nil
}

// UnmountResult reports the outcome of one forced unmount.
type UnmountResult struct {
	MountPoint string `json:"mount_point"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// ForceUnmountAll detaches every fuse mount under the base directory with
// lazy and force fallbacks, reporting per-path status.
func (m *Manager) ForceUnmountAll(ctx context.Context) ([]UnmountResult, error) {
	found, err := m.BorgMounts()
	if err != nil {
		return nil, err
	}

	var results []UnmountResult
	for _, sm := range found {
		path := sm.MountPoint
		m.log.Info().Str("path", path).Msg("force unmounting")

		_ = runCommand([]string{"fusermount", "-u", "-z", path}, 10*time.Second)
		if !m.isMounted(path) {
			results = append(results, UnmountResult{MountPoint: path, Status: "unmounted"})
			continue
		}

		_ = runCommand([]string{"umount", "-f", path}, 10*time.Second)
		if !m.isMounted(path) {
			results = append(results, UnmountResult{MountPoint: path, Status: "unmounted"})
			continue
		}

		results = append(results, UnmountResult{
			MountPoint: path,
			Status:     "failed",
			Error:      "could not unmount even with force option",
		})
	}
	return results, nil
}

func runCommand(argv []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", strings.Join(argv, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
