package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/bookexapp/bookex-server/internal/api"
	"github.com/bookexapp/bookex-server/internal/config"
	"github.com/bookexapp/bookex-server/internal/ingest"
	"github.com/bookexapp/bookex-server/internal/logger"
	"github.com/bookexapp/bookex-server/internal/ratelimit"
	"github.com/bookexapp/bookex-server/internal/service"
)

// ProvideRateLimiter provides the per-client limiter for the upload
// endpoint.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return ratelimit.New(cfg.Upload.RatePerSecond, cfg.Upload.Burst), nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	library := do.MustInvoke[*service.LibraryService](i)
	pipeline := do.MustInvoke[*ingest.Pipeline](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	handler := api.NewServer(library, pipeline, limiter, cfg.Storage.TempPath, cfg.Upload.MaxBatchBytes, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
