package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one directory entry inside a mounted archive.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Mode    string    `json:"mode"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

// Browse lists the contents of a directory inside a mounted archive and bumps
// the mount's last access time. rel is relative to the mount root.
func (m *Manager) Browse(ctx context.Context, mountID, rel string) ([]Entry, error) {
	record, err := m.svcs.Mount.GetByID(ctx, mountID)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, fmt.Errorf("mount %s is not active", mountID)
	}

	dir, err := safeJoin(record.MountPath, rel)
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(rel, de.Name()),
			Size:    info.Size(),
			Mode:    info.Mode().String(),
			ModTime: info.ModTime(),
			IsDir:   de.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	if err := m.svcs.Mount.Touch(ctx, mountID); err != nil {
		m.log.Warn().Err(err).Str("mount_id", mountID).Msg("touch mount")
	}
	return entries, nil
}

// safeJoin joins rel onto root, rejecting paths that escape the mount.
func safeJoin(root, rel string) (string, error) {
	cleaned := filepath.Clean("/" + rel)
	full := filepath.Join(root, cleaned)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the mount", rel)
	}
	return full, nil
}
