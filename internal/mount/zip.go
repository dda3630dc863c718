package mount

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// BundleZIP streams the selected files and directories from a mounted archive
// as a ZIP. Every entry keeps its path relative to the mount root, so a
// selection of etc/hosts and home/user/ unpacks into the same layout.
func (m *Manager) BundleZIP(ctx context.Context, mountID string, paths []string, w io.Writer) error {
	record, err := m.svcs.Mount.GetByID(ctx, mountID)
	if err != nil {
		return err
	}
	if !record.Active {
		return fmt.Errorf("mount %s is not active", mountID)
	}

	zw := zip.NewWriter(w)
	for _, rel := range paths {
		full, err := safeJoin(record.MountPath, rel)
		if err != nil {
			return err
		}
		info, err := os.Stat(full)
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}

		if info.IsDir() {
			err = filepath.WalkDir(full, func(p string, de fs.DirEntry, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				if de.IsDir() {
					return nil
				}
				relName, err := filepath.Rel(record.MountPath, p)
				if err != nil {
					return err
				}
				return addZipFile(zw, p, filepath.ToSlash(relName))
			})
		} else {
			relName, relErr := filepath.Rel(record.MountPath, full)
			if relErr != nil {
				return relErr
			}
			err = addZipFile(zw, full, filepath.ToSlash(relName))
		}
		if err != nil {
			return fmt.Errorf("bundle %s: %w", rel, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}

	if err := m.svcs.Mount.Touch(ctx, mountID); err != nil {
		m.log.Warn().Err(err).Str("mount_id", mountID).Msg("touch mount")
	}
	return nil
}

func addZipFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(dst, src)
	return err
}
