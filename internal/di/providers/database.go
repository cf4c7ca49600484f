package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/tartilapp/tartil-server/internal/config"
	"github.com/tartilapp/tartil-server/internal/logger"
	"github.com/tartilapp/tartil-server/internal/session"
	"github.com/tartilapp/tartil-server/internal/store"
)

// HubHandle wraps the session hub with its context for lifecycle management.
type HubHandle struct {
	*session.Hub
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *HubHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Hub.Shutdown(ctx)
}

// ProvideHub provides the session event hub.
func ProvideHub(i do.Injector) (*HubHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	hub := session.NewHub(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	log.Info("Session hub started")

	return &HubHandle{
		Hub:    hub,
		cancel: cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the settings and resume point store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hubHandle := do.MustInvoke[*HubHandle](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger, hubHandle.Hub)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
