package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/tartilapp/tartil-server/internal/domain"
)

// ReleasableEngine is the slice of the playback engine the janitor needs.
type ReleasableEngine interface {
	Snapshot() domain.SessionSnapshot
	Release()
}

// Janitor releases the playback engine after the session has sat without
// playing and without any connected observer for the release window.
// Playback itself is never interrupted; only a paused or faulted session
// that nobody is watching gets reclaimed.
type Janitor struct {
	engine    ReleasableEngine
	hub       *Hub
	window    time.Duration
	interval  time.Duration
	logger    *slog.Logger
	idleSince time.Time
}

// NewJanitor creates a janitor with the given release window.
func NewJanitor(engine ReleasableEngine, hub *Hub, window time.Duration, logger *slog.Logger) *Janitor {
	interval := window / 10
	if interval < time.Second {
		interval = time.Second
	}
	return &Janitor{
		engine:   engine,
		hub:      hub,
		window:   window,
		interval: interval,
		logger:   logger,
	}
}

// Run checks the session periodically until ctx is canceled. Blocks; run
// it in its own goroutine.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.check()
		}
	}
}

func (j *Janitor) check() {
	snap := j.engine.Snapshot()

	if snap.State == domain.StateIdle || snap.State == domain.StatePlaying || j.hub.ObserverCount() > 0 {
		j.idleSince = time.Time{}
		return
	}

	if j.idleSince.IsZero() {
		j.idleSince = time.Now()
		return
	}

	if time.Since(j.idleSince) >= j.window {
		j.logger.Info("Releasing abandoned session",
			"state", string(snap.State),
			"chapter", snap.Chapter,
			"idle_for", time.Since(j.idleSince).Round(time.Second))
		j.engine.Release()
		j.idleSince = time.Time{}
	}
}
