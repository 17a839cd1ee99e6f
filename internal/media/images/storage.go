// Package images provides cover image storage and processing.
package images

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
)

// maxTokenAttempts bounds the collision retry loop in Save.
const maxTokenAttempts = 8

// Storage manages cover image files under a root directory.
//
// Images live at {root}/{variant}/{seriesKey}/{token}.{ext}, where
// variant matches the book format the cover belongs to. The relative
// path doubles as the cover id stored on catalog rows.
type Storage struct {
	root     string
	logger   *slog.Logger
	newToken func() (string, error)
}

// NewStorage creates a Storage rooted at root.
func NewStorage(root string, logger *slog.Logger) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}
	return &Storage{
		root:     root,
		logger:   logger,
		newToken: func() (string, error) { return gonanoid.New() },
	}, nil
}

// Root returns the storage root directory.
func (s *Storage) Root() string {
	return s.root
}

// Path resolves a cover id to its absolute filesystem path.
func (s *Storage) Path(coverID string) string {
	return filepath.Join(s.root, filepath.FromSlash(coverID))
}

// Save writes image data under a freshly generated token and returns
// the cover id (the path relative to the image root). An existing file
// at a candidate path is never overwritten; the token is regenerated,
// bounded by maxTokenAttempts.
func (s *Storage) Save(variant domain.Filetype, seriesKey, ext string, data []byte) (string, error) {
	if !variant.Valid() {
		return "", apperrors.Storagef("unsupported image variant %q", variant)
	}
	if len(data) == 0 {
		return "", apperrors.Storage("image data cannot be empty")
	}
	ext = strings.TrimPrefix(ext, ".")

	dir := filepath.Join(s.root, string(variant), sanitizeKey(seriesKey))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorage, "create image directory")
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorage, "generate image token")
		}
		name := token + "." + ext

		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorage, "create image file")
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", apperrors.Wrap(err, apperrors.CodeStorage, "write image file")
		}
		if err := f.Close(); err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorage, "write image file")
		}

		coverID := string(variant) + "/" + sanitizeKey(seriesKey) + "/" + name
		s.logger.Debug("saved cover image", "cover_id", coverID, "size", len(data))
		return coverID, nil
	}

	return "", apperrors.Storagef("image token collision persisted after %d attempts", maxTokenAttempts)
}

// Delete removes the image referenced by a cover id. A missing file is
// not an error.
func (s *Storage) Delete(coverID string) error {
	if coverID == "" {
		return nil
	}
	if err := os.Remove(s.Path(coverID)); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrapf(err, apperrors.CodeStorage, "delete image %s", coverID)
	}
	return nil
}

// RemoveSeries removes the per-series image directories under both
// variants. Best-effort: absent directories are tolerated and failures
// are logged, never returned.
func (s *Storage) RemoveSeries(seriesKey string) {
	key := sanitizeKey(seriesKey)
	for _, variant := range []domain.Filetype{domain.FiletypeEPUB, domain.FiletypeMOBI} {
		dir := filepath.Join(s.root, string(variant), key)
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("remove series image directory failed", "dir", dir, "error", err)
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
