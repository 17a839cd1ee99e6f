// Package providers contains dependency injection providers for the BookEX server.
package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/bookexapp/bookex-server/internal/config"
	"github.com/bookexapp/bookex-server/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting BookEX Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"base_path", cfg.Storage.BasePath,
	)

	return log, nil
}
