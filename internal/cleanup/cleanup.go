// Package cleanup removes consumed browser links and leftover empty working directories
package cleanup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ariadm/internal/database"
	"ariadm/internal/folder"

	"github.com/spf13/afero"
)

// WorkDirSource lists working directories created outside the temp path
type WorkDirSource interface {
	WorkingDirs() []string
}

// Service provides periodic cleanup services
type Service struct {
	plugins  *database.PluginsDB
	fs       afero.Fs
	logger   *slog.Logger
	basePath string
	tempPath string
	workDirs WorkDirSource
}

// Stats reports what one sweep removed
type Stats struct {
	PluginLinks int64 `json:"plugin_links"`
	Directories int   `json:"directories"`
}

// NewService creates a cleanup service on the host filesystem. workDirs may be nil.
func NewService(plugins *database.PluginsDB, basePath, tempPath string, workDirs WorkDirSource) *Service {
	return NewServiceWithFs(afero.NewOsFs(), plugins, basePath, tempPath, workDirs)
}

// NewServiceWithFs creates a cleanup service on fs
func NewServiceWithFs(fs afero.Fs, plugins *database.PluginsDB, basePath, tempPath string, workDirs WorkDirSource) *Service {
	return &Service{
		plugins:  plugins,
		fs:       fs,
		logger:   slog.Default(),
		basePath: filepath.Clean(basePath),
		tempPath: filepath.Clean(tempPath),
		workDirs: workDirs,
	}
}

// Sweep deletes plugin links that were already picked up and removes empty directories
// below the temp path, plus every destination working directory once it is empty.
// Working directories are known from the download path and from workDirs, so ones
// created by an earlier run under another path are only found after that path is used again.
func (s *Service) Sweep() (*Stats, error) {
	stats := &Stats{}

	deleted, err := s.plugins.DeleteOldLinks()
	if err != nil {
		return stats, fmt.Errorf("failed to delete old plugin links: %w", err)
	}
	stats.PluginLinks = deleted

	removed, err := s.CleanupEmptyDirectories(s.tempPath)
	if err != nil {
		return stats, err
	}
	stats.Directories += removed

	for _, workDir := range s.workingDirs() {
		if !s.isDirectoryEmpty(workDir) {
			continue
		}
		if err := s.fs.Remove(workDir); err != nil {
			s.logger.Warn("Failed to remove empty directory", "directory", workDir, "error", err)
			continue
		}
		stats.Directories++
	}

	s.logger.Info("Cleanup completed", "plugin_links", stats.PluginLinks, "directories", stats.Directories)
	return stats, nil
}

// workingDirs returns the known working directories, keeping only ones named folder.TempDirName
func (s *Service) workingDirs() []string {
	dirs := []string{filepath.Join(s.basePath, folder.TempDirName)}
	if s.workDirs != nil {
		dirs = append(dirs, s.workDirs.WorkingDirs()...)
	}

	seen := map[string]struct{}{}
	result := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if filepath.Base(dir) != folder.TempDirName {
			continue
		}
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		result = append(result, dir)
	}
	return result
}

// isPathSafe checks that path is strictly inside the temp path or the download path
func (s *Service) isPathSafe(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		s.logger.Warn("Failed to get absolute path", "path", path, "error", err)
		return false
	}

	for _, root := range []string{s.tempPath, s.basePath} {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if strings.HasPrefix(absPath, absRoot+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// CleanupEmptyDirectories removes empty directories below rootPath, deepest first.
// rootPath itself is kept. A missing rootPath is not an error.
func (s *Service) CleanupEmptyDirectories(rootPath string) (int, error) {
	if exists, _ := afero.DirExists(s.fs, rootPath); !exists {
		return 0, nil
	}

	var dirs []string
	err := afero.Walk(s.fs, rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath || !info.IsDir() {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", rootPath, err)
	}

	// children sort after their parents, so reverse order empties leaves first
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	removed := 0
	for _, dir := range dirs {
		if !s.isPathSafe(dir) {
			s.logger.Warn("Skipping directory outside safe path", "directory", dir)
			continue
		}
		if !s.isDirectoryEmpty(dir) {
			continue
		}
		if err := s.fs.Remove(dir); err != nil {
			s.logger.Warn("Failed to remove empty directory", "directory", dir, "error", err)
			continue
		}
		s.logger.Debug("Removed empty directory", "directory", dir)
		removed++
	}
	return removed, nil
}

// isDirectoryEmpty reports whether dirPath is an existing directory with no entries
func (s *Service) isDirectoryEmpty(dirPath string) bool {
	entries, err := afero.ReadDir(s.fs, dirPath)
	if err != nil {
		return false
	}
	return len(entries) == 0
}
