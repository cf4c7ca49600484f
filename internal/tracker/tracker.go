// Package tracker polls playback position while the engine is playing
// and publishes verse-change events derived from the timing index.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
	"github.com/tartilapp/tartil-server/internal/mushaf"
	"github.com/tartilapp/tartil-server/internal/session"
	"github.com/tartilapp/tartil-server/internal/store"
)

// Engine is the slice of the playback engine the tracker reads and steers.
type Engine interface {
	Snapshot() domain.SessionSnapshot
	SeekTo(positionMs int64) error
}

// TimingSource resolves positions and verse starts.
type TimingSource interface {
	CurrentVerse(ctx context.Context, reciterID, chapter int, positionMs int64) (int, error)
	VerseStart(ctx context.Context, reciterID, chapter, verse int) (int64, error)
	Correction() time.Duration
}

// Tracker derives verse-change events from playback position.
//
// The loop is deliberately poll based: position reporting from audio
// pipelines is itself poll based, so pushing would only move the tick
// elsewhere. The goroutine runs only while the engine is playing;
// OnSnapshot starts it on Playing and tears it down on any other
// state, so paused and idle sessions cost nothing. The interval is
// configurable so tests can run much faster.
type Tracker struct {
	engine   Engine
	timing   TimingSource
	events   store.EventEmitter
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	armed   bool
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	chapter int
	verse   int
}

// New creates a tracker polling at the given interval.
func New(engine Engine, timing TimingSource, events store.EventEmitter, logger *slog.Logger, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Tracker{
		engine:   engine,
		timing:   timing,
		events:   events,
		logger:   logger,
		interval: interval,
	}
}

// Start arms the tracker. The poll goroutine is launched on the next
// Playing snapshot, or right away when the engine is already playing.
// Calling Start on an armed tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	state := t.engine.Snapshot().State

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		return
	}
	t.armed = true
	t.baseCtx = ctx
	if state == domain.StatePlaying {
		t.startLoopLocked()
	}
	t.logger.Info("Verse tracker armed", "interval", t.interval)
}

// Stop disarms the tracker, halts any running poll loop and waits for
// it to exit. Idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	done := t.done
	t.stopLoopLocked()
	t.mu.Unlock()

	if done != nil {
		<-done
	}
	t.logger.Info("Verse tracker stopped")
}

// OnSnapshot receives engine state changes. Playing starts the poll
// loop, any other state halts it; Idle also clears the tracked verse.
func (t *Tracker) OnSnapshot(snap domain.SessionSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return
	}

	switch snap.State {
	case domain.StatePlaying:
		t.startLoopLocked()
	case domain.StateIdle:
		t.stopLoopLocked()
		t.chapter = 0
		t.verse = 0
	default:
		t.stopLoopLocked()
	}
}

func (t *Tracker) startLoopLocked() {
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(t.baseCtx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
}

// stopLoopLocked cancels the loop without waiting; the goroutine drains
// on its own once the context is done.
func (t *Tracker) stopLoopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	t.done = nil
}

// CurrentVerse returns the last published verse, 0 when none.
func (t *Tracker) CurrentVerse() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.verse
}

// SeekToVerse jumps playback to the start of a verse in the active
// chapter and publishes the change immediately.
func (t *Tracker) SeekToVerse(ctx context.Context, verse int) error {
	snap := t.engine.Snapshot()
	if snap.Chapter == 0 || !snap.State.Active() {
		return errors.Conflict("no chapter loaded")
	}

	if count := mushaf.VerseCount(snap.Chapter); verse < 1 || verse > count {
		return errors.InvalidArgumentf("verse %d out of range [1, %d]", verse, count)
	}

	start, err := t.timing.VerseStart(ctx, snap.ReciterID, snap.Chapter, verse)
	if err != nil {
		return err
	}

	// Land past the correction window so the next poll resolves to the
	// target verse, not its predecessor.
	if err := t.engine.SeekTo(start + t.timing.Correction().Milliseconds()); err != nil {
		return err
	}

	t.publish(snap.Chapter, verse)
	return nil
}

// NextVerse advances to the verse after the current one.
func (t *Tracker) NextVerse(ctx context.Context) error {
	return t.step(ctx, +1)
}

// PreviousVerse moves back to the verse before the current one.
func (t *Tracker) PreviousVerse(ctx context.Context) error {
	return t.step(ctx, -1)
}

func (t *Tracker) step(ctx context.Context, delta int) error {
	snap := t.engine.Snapshot()
	if snap.Chapter == 0 || !snap.State.Active() {
		return errors.Conflict("no chapter loaded")
	}

	t.mu.Lock()
	current := t.verse
	t.mu.Unlock()
	if current == 0 {
		return errors.Conflict("no verse known yet")
	}

	target := current + delta
	if target < 1 {
		return errors.Conflict("already at first verse")
	}
	if count := mushaf.VerseCount(snap.Chapter); target > count {
		return errors.Conflict("already at last verse")
	}
	return t.SeekToVerse(ctx, target)
}

func (t *Tracker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick performs one poll. The loop only runs while playing; the state
// guard covers the window between a pause and the loop teardown.
func (t *Tracker) tick(ctx context.Context) {
	snap := t.engine.Snapshot()

	if snap.State != domain.StatePlaying {
		return
	}

	verse, err := t.timing.CurrentVerse(ctx, snap.ReciterID, snap.Chapter, snap.PositionMs)
	if err != nil {
		// No timing table: nothing to publish for this reciter.
		t.logger.Debug("Verse lookup failed", "chapter", snap.Chapter, "error", err)
		return
	}
	if verse == 0 {
		// Between intervals (lead-in or gap): keep the last verse.
		return
	}

	t.mu.Lock()
	changed := verse != t.verse || snap.Chapter != t.chapter
	t.mu.Unlock()

	if changed {
		t.publish(snap.Chapter, verse)
	}
}

// publish records and broadcasts a verse change.
func (t *Tracker) publish(chapter, verse int) {
	t.mu.Lock()
	t.chapter = chapter
	t.verse = verse
	t.mu.Unlock()

	t.events.Emit(session.NewVerseChangedEvent(chapter, verse))
	t.logger.Debug("Verse changed", "chapter", chapter, "verse", verse)
}
