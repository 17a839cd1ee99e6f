package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookexapp/bookex-server/internal/logger"
	"github.com/bookexapp/bookex-server/internal/media/books"
	"github.com/bookexapp/bookex-server/internal/media/images"
	"github.com/bookexapp/bookex-server/internal/service"
)

// ProvideLibraryService provides the catalog service.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bookStorage := do.MustInvoke[*books.Storage](i)
	imageStorage := do.MustInvoke[*images.Storage](i)

	return service.NewLibraryService(storeHandle.Store, bookStorage, imageStorage, log.Logger), nil
}
