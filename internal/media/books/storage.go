// Package books manages the canonical on-disk layout for book files.
//
// Files are arranged as {root}/{format}/{seriesKey}/{no}.{ext}, where
// format is "epub" or "mobi" and seriesKey is the series title.
package books

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
)

// Storage manages book file placement under a root directory.
type Storage struct {
	root   string
	logger *slog.Logger
}

// NewStorage creates a Storage rooted at root.
func NewStorage(root string, logger *slog.Logger) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create books directory: %w", err)
	}
	return &Storage{root: root, logger: logger}, nil
}

// Root returns the storage root directory.
func (s *Storage) Root() string {
	return s.root
}

// Path returns the canonical path for a book file without touching the
// filesystem.
func (s *Storage) Path(format domain.Filetype, seriesKey string, no int64, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("%d.%s", no, ext)
	return filepath.Join(s.root, string(format), sanitizeKey(seriesKey), name)
}

// Add moves srcPath into its canonical location and returns the final
// path. The destination directory is created on demand. The source file
// is consumed on success.
func (s *Storage) Add(srcPath string, format domain.Filetype, seriesKey string, no int64, ext string) (string, error) {
	if !format.Valid() {
		return "", apperrors.Storagef("unsupported book format %q", format)
	}

	dst := s.Path(format, seriesKey, no, ext)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorage, "create series directory")
	}

	if err := moveFile(srcPath, dst); err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeStorage, "place book file %s", dst)
	}

	s.logger.Debug("placed book file", "path", dst)
	return dst, nil
}

// Remove unlinks one book file. A missing file is not an error.
func (s *Storage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrapf(err, apperrors.CodeStorage, "remove book file %s", path)
	}
	return nil
}

// RemoveSeries removes the per-series directory under every format root.
// Each attempt is best-effort: absent directories are tolerated and
// failures are logged, never returned.
func (s *Storage) RemoveSeries(seriesKey string) {
	key := sanitizeKey(seriesKey)
	for _, format := range []domain.Filetype{domain.FiletypeEPUB, domain.FiletypeMOBI} {
		dir := filepath.Join(s.root, string(format), key)
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("remove series directory failed", "dir", dir, "error", err)
		}
	}
}

// sanitizeKey makes a series title safe as a single path element.
func sanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, string(os.PathSeparator), "_")
	if key == "" || key == "." || key == ".." {
		return "_"
	}
	return key
}

// moveFile renames src to dst, falling back to copy+remove when the
// rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
