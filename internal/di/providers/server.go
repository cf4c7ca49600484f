package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/tartilapp/tartil-server/internal/api"
	"github.com/tartilapp/tartil-server/internal/config"
	"github.com/tartilapp/tartil-server/internal/logger"
	"github.com/tartilapp/tartil-server/internal/ratelimit"
	"github.com/tartilapp/tartil-server/internal/session"
)

// commandRatePerSecond bounds how fast a single observer can issue
// session commands.
const (
	commandRatePerSecond = 10
	commandBurst         = 20
)

// RateLimiterHandle wraps the keyed rate limiter with shutdown capability.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-client command rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	return &RateLimiterHandle{KeyedRateLimiter: ratelimit.New(commandRatePerSecond, commandBurst)}, nil
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
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hubHandle := do.MustInvoke[*HubHandle](i)
	indexHandle := do.MustInvoke[*TimingIndexHandle](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	sessionService := do.MustInvoke[*session.Service](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)

	streamHandler := session.NewStreamHandler(hubHandle.Hub, log.Logger)

	handler := api.NewServer(
		storeHandle.Store,
		catalogHandle.Service,
		indexHandle.Index,
		sessionService,
		hubHandle.Hub,
		streamHandler,
		limiterHandle.KeyedRateLimiter,
		log.Logger,
	)

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

	log.Info("Server running", "addr", srv.Addr, "name", cfg.Server.Name)

	return &HTTPServerHandle{Server: srv}, nil
}
