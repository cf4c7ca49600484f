// Package di provides dependency injection configuration for the Tartil server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/tartilapp/tartil-server/internal/config"
	"github.com/tartilapp/tartil-server/internal/di/providers"
	"github.com/tartilapp/tartil-server/internal/logger"
	"github.com/tartilapp/tartil-server/internal/player"
	"github.com/tartilapp/tartil-server/internal/session"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Event hub and storage layer
	do.Provide(injector, providers.ProvideHub)
	do.Provide(injector, providers.ProvideStore)

	// Timing index
	do.Provide(injector, providers.ProvideTimingIndex)

	// Catalog and playback
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvidePipeline)
	do.Provide(injector, providers.ProvideEngine)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideTracker)

	// Workers
	do.Provide(injector, providers.ProvideJanitor)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once everything is wired.
// This triggers lazy initialization in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.HubHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.TimingIndexHandle](injector)
	_ = do.MustInvoke[*providers.CatalogHandle](injector)
	_ = do.MustInvoke[player.Pipeline](injector)
	_ = do.MustInvoke[*player.Engine](injector)
	_ = do.MustInvoke[*session.Service](injector)
	_ = do.MustInvoke[*providers.TrackerHandle](injector)
	_ = do.MustInvoke[*providers.JanitorHandle](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
