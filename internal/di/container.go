// Package di provides dependency injection configuration for the BookEX server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bookexapp/bookex-server/internal/config"
	"github.com/bookexapp/bookex-server/internal/convert"
	"github.com/bookexapp/bookex-server/internal/di/providers"
	"github.com/bookexapp/bookex-server/internal/ingest"
	"github.com/bookexapp/bookex-server/internal/logger"
	"github.com/bookexapp/bookex-server/internal/media/books"
	"github.com/bookexapp/bookex-server/internal/media/images"
	"github.com/bookexapp/bookex-server/internal/ratelimit"
	"github.com/bookexapp/bookex-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Storage layer
	do.Provide(injector, providers.ProvideBookStorage)
	do.Provide(injector, providers.ProvideImageStorage)
	do.Provide(injector, providers.ProvideImageProcessor)

	// Conversion and ingestion
	do.Provide(injector, providers.ProvideConverter)
	do.Provide(injector, providers.ProvidePipeline)

	// Business services
	do.Provide(injector, providers.ProvideLibraryService)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*books.Storage](injector)
	_ = do.MustInvoke[*images.Storage](injector)
	_ = do.MustInvoke[*images.Processor](injector)
	_ = do.MustInvoke[*convert.Converter](injector)
	_ = do.MustInvoke[*ingest.Pipeline](injector)
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
