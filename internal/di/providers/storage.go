package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/bookexapp/bookex-server/internal/config"
	"github.com/bookexapp/bookex-server/internal/logger"
	"github.com/bookexapp/bookex-server/internal/media/books"
	"github.com/bookexapp/bookex-server/internal/media/images"
)

// ProvideBookStorage provides the canonical book file tree.
func ProvideBookStorage(i do.Injector) (*books.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := books.NewStorage(cfg.Storage.BooksPath, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("book storage: %w", err)
	}

	log.Info("Book storage initialized", "path", cfg.Storage.BooksPath)

	return storage, nil
}

// ProvideImageStorage provides the cover image tree.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorage(cfg.Storage.ImagesPath, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("image storage: %w", err)
	}

	log.Info("Image storage initialized", "path", cfg.Storage.ImagesPath)

	return storage, nil
}

// ProvideImageProcessor provides the image processor for cover art.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(log.Logger), nil
}
