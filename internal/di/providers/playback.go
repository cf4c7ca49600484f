package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/tartilapp/tartil-server/internal/catalog"
	"github.com/tartilapp/tartil-server/internal/config"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/logger"
	"github.com/tartilapp/tartil-server/internal/player"
	"github.com/tartilapp/tartil-server/internal/session"
	"github.com/tartilapp/tartil-server/internal/tracker"
	"github.com/tartilapp/tartil-server/internal/validation"
)

// CatalogHandle wraps the reciter catalog service.
type CatalogHandle struct {
	*catalog.Service
}

// ProvideCatalogService provides the reciter catalog, enriched from the
// configured endpoint when one is set.
func ProvideCatalogService(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*TimingIndexHandle](i)
	hubHandle := do.MustInvoke[*HubHandle](i)

	client := &http.Client{Timeout: cfg.Catalog.EnrichmentTimeout}
	svc := catalog.New(storeHandle.Store, indexHandle.Index, hubHandle.Hub, log.Logger, cfg.Catalog.EnrichmentURL, client)

	if cfg.Catalog.EnrichmentURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Catalog.EnrichmentTimeout)
		defer cancel()
		svc.Enrich(ctx)
	}

	log.Info("Reciter catalog ready", "reciters", len(svc.List(catalog.ListOptions{})))

	return &CatalogHandle{Service: svc}, nil
}

// ProvidePipeline provides the audio pipeline used to prepare chapter
// recordings.
func ProvidePipeline(i do.Injector) (player.Pipeline, error) {
	return player.NewHTTPPipeline(nil, 0), nil
}

// ProvideEngine provides the playback engine with persisted preferences
// restored and the timing index wired as its duration fallback.
func ProvideEngine(i do.Injector) (*player.Engine, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hubHandle := do.MustInvoke[*HubHandle](i)
	indexHandle := do.MustInvoke[*TimingIndexHandle](i)
	pipeline := do.MustInvoke[player.Pipeline](i)

	hub := hubHandle.Hub
	engine := player.New(pipeline, func(snap domain.SessionSnapshot) {
		hub.Emit(session.NewSnapshotEvent(snap))
	}, log.Logger)
	engine.SetDurationSource(indexHandle.Index)

	settings, err := storeHandle.GetOrCreatePlayerSettings(context.Background())
	if err != nil {
		return nil, err
	}
	engine.RestoreSettings(settings)

	log.Info("Playback engine ready",
		"speed", settings.Speed,
		"repeat", settings.Repeat,
		"reciter_id", settings.ReciterID,
	)

	return engine, nil
}

// ProvideSessionService provides the command dispatch service.
func ProvideSessionService(i do.Injector) (*session.Service, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalogHandle := do.MustInvoke[*CatalogHandle](i)
	engine := do.MustInvoke[*player.Engine](i)

	svc := session.NewService(engine, catalogHandle.Service, storeHandle.Store, validation.New(), log.Logger)
	return svc, nil
}

// TrackerHandle wraps the verse tracker with shutdown capability.
type TrackerHandle struct {
	*tracker.Tracker
}

// Shutdown implements do.Shutdownable.
func (h *TrackerHandle) Shutdown() error {
	h.Tracker.Stop()
	return nil
}

// ProvideTracker provides the verse tracker and wires it into the session
// service as its navigator.
func ProvideTracker(i do.Injector) (*TrackerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	hubHandle := do.MustInvoke[*HubHandle](i)
	indexHandle := do.MustInvoke[*TimingIndexHandle](i)
	engine := do.MustInvoke[*player.Engine](i)
	sessionService := do.MustInvoke[*session.Service](i)

	tr := tracker.New(engine, indexHandle.Index, hubHandle.Hub, log.Logger, cfg.Playback.PollInterval)
	sessionService.SetNavigator(tr)

	// Engine snapshots drive the poll loop lifecycle.
	engine.Subscribe(tr.OnSnapshot)
	tr.Start(context.Background())

	log.Info("Verse tracker armed", "poll_interval", cfg.Playback.PollInterval)

	return &TrackerHandle{Tracker: tr}, nil
}
