package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/tartilapp/tartil-server/internal/config"
	"github.com/tartilapp/tartil-server/internal/logger"
	"github.com/tartilapp/tartil-server/internal/player"
	"github.com/tartilapp/tartil-server/internal/session"
)

// JanitorHandle wraps the session janitor with its lifecycle.
type JanitorHandle struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *JanitorHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideJanitor provides the idle session janitor.
func ProvideJanitor(i do.Injector) (*JanitorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hubHandle := do.MustInvoke[*HubHandle](i)
	engine := do.MustInvoke[*player.Engine](i)

	janitor := session.NewJanitor(engine, hubHandle.Hub, cfg.Playback.ReleaseWindow, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go janitor.Run(ctx)

	log.Info("Session janitor started", "release_window", cfg.Playback.ReleaseWindow)

	return &JanitorHandle{cancel: cancel}, nil
}
