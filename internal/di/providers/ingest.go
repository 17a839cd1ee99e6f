package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookexapp/bookex-server/internal/config"
	"github.com/bookexapp/bookex-server/internal/convert"
	"github.com/bookexapp/bookex-server/internal/ingest"
	"github.com/bookexapp/bookex-server/internal/logger"
	"github.com/bookexapp/bookex-server/internal/media/books"
	"github.com/bookexapp/bookex-server/internal/media/images"
)

// ProvideConverter provides the EPUB-to-MOBI converter. The kindlegen
// binary is downloaded lazily on first conversion, not here.
func ProvideConverter(i do.Injector) (*convert.Converter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return convert.New(cfg.Converter.BinDir, cfg.Converter.Timeout, log.Logger), nil
}

// ProvidePipeline provides the asynchronous ingestion pipeline.
func ProvidePipeline(i do.Injector) (*ingest.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	converter := do.MustInvoke[*convert.Converter](i)
	bookStorage := do.MustInvoke[*books.Storage](i)
	imageStorage := do.MustInvoke[*images.Storage](i)
	processor := do.MustInvoke[*images.Processor](i)

	return ingest.New(storeHandle.Store, converter, bookStorage, imageStorage, processor, cfg.App.Debug, log.Logger), nil
}
