package session

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/tartilapp/tartil-server/internal/catalog"
	"github.com/tartilapp/tartil-server/internal/id"
	"github.com/tartilapp/tartil-server/internal/store"
)

// Observer represents a connected session observer.
type Observer struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
}

// Hub manages observer connections and broadcasts session events.
// Every observer receives every event; the most recent snapshot is
// retained and handed to observers that attach late, so a fresh UI can
// render immediately without waiting for the next change.
type Hub struct {
	observers         map[string]*Observer
	events            chan Event
	logger            *slog.Logger
	wg                sync.WaitGroup
	heartbeatInterval time.Duration
	mu                sync.RWMutex

	// Latest snapshot for late joiners - protected by lastMu.
	lastMu   sync.RWMutex
	lastSnap *Event

	// Shutdown state - protected by shutdownMu.
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewHub creates a new session hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		observers:         make(map[string]*Observer),
		events:            make(chan Event, 1000), // Buffer 1000 events
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// Start begins the event broadcasting loop.
// This should be called once at server startup in a goroutine.
func (h *Hub) Start(ctx context.Context) {
	h.wg.Add(1)
	defer h.wg.Done()

	h.logger.Info("Session hub starting")

	heartbeatTicker := time.NewTicker(h.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event := <-h.events:
			h.broadcast(event)

		case <-heartbeatTicker.C:
			h.broadcast(NewHeartbeatEvent())

		case <-ctx.Done():
			h.logger.Info("Session hub stopping")
			h.closeAllObservers()
			return
		}
	}
}

// Shutdown gracefully shuts down the hub.
// It stops accepting new events, drains remaining events, and closes all observers.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("Session hub shutdown initiated")

	// Mark as shutdown AND close channel atomically while holding lock.
	// This prevents race with Emit() which holds read lock during send.
	h.shutdownMu.Lock()
	h.shutdown = true
	close(h.events)
	h.shutdownMu.Unlock()

	// Drain remaining events with context timeout.
	done := make(chan struct{})
	go func() {
		for event := range h.events {
			h.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Session events drained successfully")
	case <-ctx.Done():
		h.logger.Warn("Session event drain timeout, some events may be lost")
	}

	h.wg.Wait()

	h.logger.Info("Session hub shutdown complete")
	return nil
}

// broadcast sends an event to all connected observers. Retaining the
// snapshot and delivering it happen under lastMu so Connect cannot slip
// between the two and come up one update stale.
func (h *Hub) broadcast(event Event) {
	h.lastMu.Lock()
	defer h.lastMu.Unlock()

	if event.Type == EventSnapshot {
		snap := event
		h.lastSnap = &snap
	}

	var delivered, dropped int

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, obs := range h.observers {
		// Non-blocking send (drop if observer is slow/stuck).
		select {
		case obs.EventChan <- event:
			delivered++
		default:
			dropped++
			h.logger.Warn("dropped event for slow observer",
				slog.String("observer_id", obs.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.Type != EventHeartbeat {
		h.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("dropped", dropped)))
	}
}

// Connect registers a new observer and returns it. The latest retained
// snapshot, if any, is queued first so the observer renders immediately.
func (h *Hub) Connect() (*Observer, error) {
	observerID, err := id.Generate("obs")
	if err != nil {
		return nil, err
	}

	obs := &Observer{
		ID:          observerID,
		EventChan:   make(chan Event, 100), // Buffer 100 events per observer
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	// Queue the retained snapshot and register in one critical section
	// against broadcast, so the observer gets every snapshot either
	// replayed or delivered live, and the replay always arrives first.
	h.lastMu.RLock()
	if h.lastSnap != nil {
		obs.EventChan <- *h.lastSnap
	}
	h.mu.Lock()
	h.observers[obs.ID] = obs
	total := len(h.observers)
	h.mu.Unlock()
	h.lastMu.RUnlock()

	h.logger.Info("Session observer connected",
		slog.String("observer_id", observerID),
		slog.Int("total_observers", total))
	return obs, nil
}

// Disconnect removes an observer and closes its channels.
func (h *Hub) Disconnect(observerID string) {
	h.mu.Lock()
	obs, ok := h.observers[observerID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.observers, observerID)
	total := len(h.observers)
	h.mu.Unlock()

	close(obs.Done)
	close(obs.EventChan)

	h.logger.Info("Session observer disconnected",
		slog.String("observer_id", observerID),
		slog.Duration("duration", time.Since(obs.ConnectedAt)),
		slog.Int("total_observers", total))
}

// Emit queues an event for broadcasting to observers.
// This implements the store.EventEmitter interface; payloads emitted by
// collaborating services are wrapped into typed events here.
func (h *Hub) Emit(event any) {
	var evt Event
	switch v := event.(type) {
	case Event:
		evt = v
	case catalog.SelectionChangedEvent:
		evt = Event{Type: EventReciterSelected, Data: v.Reciter, Timestamp: time.Now()}
	case store.SettingsChangedEvent:
		evt = Event{Type: EventSettingsChanged, Data: v.Settings, Timestamp: time.Now()}
	default:
		h.logger.Error("invalid event type emitted")
		return
	}

	// Hold read lock through the entire send operation.
	// This prevents race with Shutdown() which holds write lock when closing channel.
	h.shutdownMu.RLock()
	defer h.shutdownMu.RUnlock()

	if h.shutdown {
		// Silently drop events after shutdown - this is expected during shutdown
		return
	}

	select {
	case h.events <- evt:
		// Event queued for broadcast.
	default:
		// Event channel full, log and drop.
		h.logger.Error("session event channel full, dropping event",
			slog.String("event_type", string(evt.Type)))
	}
}

// LatestSnapshot returns the retained snapshot, or false when nothing
// has been broadcast yet.
func (h *Hub) LatestSnapshot() (Event, bool) {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	if h.lastSnap == nil {
		return Event{}, false
	}
	return *h.lastSnap, true
}

// Observers returns an iterator over all connected observers.
func (h *Hub) Observers() iter.Seq[*Observer] {
	return func(yield func(*Observer) bool) {
		h.mu.RLock()
		defer h.mu.RUnlock()

		for _, obs := range h.observers {
			if !yield(obs) {
				return
			}
		}
	}
}

// ObserverCount returns the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// closeAllObservers closes all observer connections (used during shutdown).
func (h *Hub) closeAllObservers() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, obs := range h.observers {
		close(obs.Done)
		close(obs.EventChan)
	}
	h.observers = make(map[string]*Observer) // Clear the map

	h.logger.Info("all session observers disconnected")
}
