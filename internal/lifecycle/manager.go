// Package lifecycle decides which of a finished day's artifacts survive and
// optionally bundles the day folder into a single zip.
package lifecycle

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// Retention holds the caller's artifact retention decisions.
type Retention struct {
	KeepCompressed   bool
	KeepDecompressed bool
	KeepMinuteTables bool
	ZipDay           bool
}

// Manager applies retention to finished day directories.
type Manager struct {
	retention Retention
	logger    *slog.Logger
}

func NewManager(retention Retention, logger *slog.Logger) *Manager {
	return &Manager{retention: retention, logger: logger}
}

// Retention returns the configured policy, so the pipeline can decide which
// artifacts are worth writing in the first place.
func (m *Manager) Retention() Retention { return m.retention }

// Finalize prunes unretained intermediate directories and, when configured,
// zips the day folder and removes it, leaving only the bundle. Returns the
// zip path, or "" when zipping is disabled.
func (m *Manager) Finalize(layout domain.DayLayout) (string, error) {
	if !m.retention.KeepCompressed {
		m.removeDir(layout.CompressedDir())
	}
	if !m.retention.KeepDecompressed {
		m.removeDir(layout.DecompressedDir())
	}
	if !m.retention.KeepMinuteTables {
		m.removeDir(layout.MinuteTableDir())
	}

	if !m.retention.ZipDay {
		return "", nil
	}

	zipPath := layout.ZipPath()
	if err := zipDay(layout.Root(), zipPath); err != nil {
		return "", fmt.Errorf("zip day folder: %w", err)
	}
	if err := os.RemoveAll(layout.Root()); err != nil {
		return "", fmt.Errorf("remove day folder after zip: %w", err)
	}
	m.logger.Info("day bundled", "zip", zipPath)
	return zipPath, nil
}

func (m *Manager) removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("cleanup failed", "dir", dir, "error", err)
	}
}

// zipDay writes every file under root into a deflate zip, entries named
// relative to root's parent so the bundle unpacks to <date>/...
func zipDay(root, zipPath string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	base := filepath.Dir(root)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
