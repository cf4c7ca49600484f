package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/tartilapp/tartil-server/internal/config"
	"github.com/tartilapp/tartil-server/internal/logger"
	"github.com/tartilapp/tartil-server/internal/timing"
)

// TimingIndexHandle wraps the timing index with its watcher lifecycle.
type TimingIndexHandle struct {
	*timing.Index
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *TimingIndexHandle) Shutdown() error {
	h.cancel()
	return h.Index.Close()
}

// ProvideTimingIndex provides the verse timing index with its directory
// watcher running.
func ProvideTimingIndex(i do.Injector) (*TimingIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := timing.NewIndex(cfg.Data.TimingPath, cfg.Playback.LookupCorrection, log.Logger)
	if err != nil {
		return nil, err
	}

	// Watch for timing databases appearing or disappearing
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := index.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Timing directory watcher stopped", "error", err)
		}
	}()

	return &TimingIndexHandle{
		Index:  index,
		cancel: cancel,
	}, nil
}
