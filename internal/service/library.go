// Package service provides the business logic layer coordinating the
// catalog store with on-disk book and image storage.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bookexapp/bookex-server/internal/domain"
	apperrors "github.com/bookexapp/bookex-server/internal/errors"
	"github.com/bookexapp/bookex-server/internal/media/books"
	"github.com/bookexapp/bookex-server/internal/media/images"
	"github.com/bookexapp/bookex-server/internal/store"
	"github.com/bookexapp/bookex-server/internal/store/sqlite"
)

// LibraryService orchestrates catalog operations. Deletions clean up
// rows and their on-disk artifacts together.
type LibraryService struct {
	store  *sqlite.Store
	books  *books.Storage
	images *images.Storage
	logger *slog.Logger
}

// NewLibraryService creates a new library service.
func NewLibraryService(store *sqlite.Store, bookStorage *books.Storage, imageStorage *images.Storage, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:  store,
		books:  bookStorage,
		images: imageStorage,
		logger: logger,
	}
}

// CreateSeries adds a new series.
func (s *LibraryService) CreateSeries(ctx context.Context, series *domain.Series) (*domain.Series, error) {
	if strings.TrimSpace(series.Title) == "" {
		return nil, apperrors.Validation("series title is required")
	}

	id, err := s.store.CreateSeries(ctx, series)
	if err != nil {
		return nil, err
	}
	series.ID = id

	s.logger.Info("series created", "series_id", id, "title", series.Title)
	return series, nil
}

// GetSeries retrieves one series by id.
func (s *LibraryService) GetSeries(ctx context.Context, id int64) (*domain.Series, error) {
	return s.store.GetSeries(ctx, id)
}

// SearchSeries returns series matching the filter; an empty filter
// lists everything.
func (s *LibraryService) SearchSeries(ctx context.Context, f *store.Filter) ([]*domain.Series, error) {
	return s.store.SearchSeries(ctx, f)
}

// UpdateSeries applies a partial update to one series.
func (s *LibraryService) UpdateSeries(ctx context.Context, id int64, patch *domain.SeriesPatch) (*domain.Series, error) {
	if err := s.store.UpdateSeries(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.store.GetSeries(ctx, id)
}

// DeleteSeries removes every series matching the filter together with
// its books' rows, files, and cover images. Returns the number of
// series deleted. File cleanup is best-effort; row deletion is not.
func (s *LibraryService) DeleteSeries(ctx context.Context, f *store.Filter) (int64, error) {
	if f.IsEmpty() {
		return 0, store.ErrNoFilter
	}

	matches, err := s.store.SearchSeries(ctx, f)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, series := range matches {
		bookFilter := store.NewFilter().WithNumber("series_id", store.Equals(series.ID))
		seriesBooks, err := s.store.SearchBooks(ctx, bookFilter)
		if err != nil {
			return deleted, err
		}

		for _, b := range seriesBooks {
			if err := s.books.Remove(b.Filepath); err != nil {
				s.logger.Warn("remove book file failed", "path", b.Filepath, "error", err)
			}
		}
		s.books.RemoveSeries(series.Title)
		s.images.RemoveSeries(series.Title)
		if err := s.images.Delete(series.CoverID); err != nil {
			s.logger.Warn("remove series cover failed", "cover_id", series.CoverID, "error", err)
		}

		if len(seriesBooks) > 0 {
			if _, err := s.store.DeleteBooks(ctx, bookFilter); err != nil {
				return deleted, err
			}
		}
		if _, err := s.store.DeleteSeries(ctx, store.NewFilter().WithNumber("id", store.Equals(series.ID))); err != nil {
			return deleted, err
		}
		deleted++

		s.logger.Info("series deleted", "series_id", series.ID, "title", series.Title, "books", len(seriesBooks))
	}
	return deleted, nil
}

// SearchBooks returns books matching the filter; an empty filter lists
// everything.
func (s *LibraryService) SearchBooks(ctx context.Context, f *store.Filter) ([]*domain.Book, error) {
	return s.store.SearchBooks(ctx, f)
}

// UpdateBook applies a partial update to one book.
func (s *LibraryService) UpdateBook(ctx context.Context, id int64, patch *domain.BookPatch) (*domain.Book, error) {
	if patch.SeriesID != nil {
		if _, err := s.store.GetSeries(ctx, *patch.SeriesID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Validationf("series %d does not exist", *patch.SeriesID)
			}
			return nil, err
		}
	}
	if err := s.store.UpdateBook(ctx, id, patch); err != nil {
		return nil, err
	}
	return s.store.GetBook(ctx, id)
}

// DeleteBooks removes every book matching the filter along with its
// file and cover image. Returns the number of rows deleted.
func (s *LibraryService) DeleteBooks(ctx context.Context, f *store.Filter) (int64, error) {
	if f.IsEmpty() {
		return 0, store.ErrNoFilter
	}

	matches, err := s.store.SearchBooks(ctx, f)
	if err != nil {
		return 0, err
	}

	for _, b := range matches {
		if err := s.books.Remove(b.Filepath); err != nil {
			s.logger.Warn("remove book file failed", "path", b.Filepath, "error", err)
		}
		if err := s.images.Delete(b.CoverID); err != nil {
			s.logger.Warn("remove book cover failed", "cover_id", b.CoverID, "error", err)
		}
	}
	if len(matches) == 0 {
		return 0, nil
	}

	deleted, err := s.store.DeleteBooks(ctx, f)
	if err != nil {
		return 0, err
	}

	s.logger.Info("books deleted", "count", deleted)
	return deleted, nil
}

// GetJob returns a conversion job's status record.
func (s *LibraryService) GetJob(ctx context.Context, id int64) (*domain.ConversionJob, error) {
	return s.store.GetJob(ctx, id)
}
