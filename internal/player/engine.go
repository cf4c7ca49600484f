// Package player implements the playback engine: a single active audio
// item driven by a media clock, with the idle/loading/playing/paused/
// stopped/error state machine and repeat-at-end behavior.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
	"github.com/tartilapp/tartil-server/internal/mushaf"
)

// Notifier receives a fresh snapshot after every observable change.
type Notifier func(domain.SessionSnapshot)

// DurationSource resolves a chapter's length from its timing table,
// used when the stream itself does not report a duration.
type DurationSource interface {
	ChapterDuration(ctx context.Context, reciterID, chapter int) (int64, error)
}

// Engine owns the single active audio item and its session identity.
//
// Position is tracked by a media clock: while playing, the reported
// position is the anchored base position plus wall time elapsed since
// the anchor, scaled by the playback rate. There is no real decode loop
// behind it; the Pipeline collaborator stands in for the audio backend.
type Engine struct {
	pipeline  Pipeline
	durations DurationSource
	logger    *slog.Logger

	notifiers []Notifier // guarded by mu

	mu      sync.Mutex
	state   domain.PlaybackState
	reciter *domain.Reciter
	chapter int
	label   string
	lastErr string

	speed    float64
	repeat   bool
	duration int64

	// media clock
	basePos  int64     // position when the clock was last anchored
	anchorAt time.Time // wall time of the anchor; zero while not playing

	// loadGen lets a newer LoadChapter supersede an in-flight one.
	loadGen uint64

	// endTimer fires when the clock reaches the end of the item.
	endTimer *time.Timer
}

// New creates an engine in the Idle state.
func New(pipeline Pipeline, notify Notifier, logger *slog.Logger) *Engine {
	e := &Engine{
		pipeline: pipeline,
		logger:   logger,
		state:    domain.StateIdle,
		speed:    1.0,
	}
	if notify != nil {
		e.notifiers = append(e.notifiers, notify)
	}
	return e
}

// Subscribe registers an additional snapshot listener. Listeners run
// synchronously on every publish; register them during startup.
func (e *Engine) Subscribe(fn Notifier) {
	e.mu.Lock()
	e.notifiers = append(e.notifiers, fn)
	e.mu.Unlock()
}

// SetDurationSource wires the timing-table duration fallback. Call
// during startup, before the first load.
func (e *Engine) SetDurationSource(src DurationSource) {
	e.durations = src
}

// RestoreSettings applies persisted preferences without emitting events.
// Call before the first observer attaches.
func (e *Engine) RestoreSettings(settings *domain.PlayerSettings) {
	if settings == nil {
		return
	}
	e.mu.Lock()
	e.speed = domain.ClampSpeed(settings.Speed)
	e.repeat = settings.Repeat
	e.mu.Unlock()
}

// LoadChapter replaces the current item with the given chapter. The
// engine transitions to Loading immediately, then to Playing (autoPlay)
// or Paused once the stream is prepared, or to Error on failure.
// Concurrent calls supersede any in-flight load; the last call wins.
func (e *Engine) LoadChapter(ctx context.Context, chapter int, reciter *domain.Reciter, autoPlay bool) error {
	if !domain.ValidChapter(chapter) {
		return errors.InvalidArgumentf("chapter %d out of range [%d, %d]", chapter, domain.MinChapter, domain.MaxChapter)
	}
	if reciter == nil {
		return errors.InvalidArgument("reciter is required")
	}

	url, err := reciter.StreamURL(chapter)
	if err != nil {
		return errors.InvalidArgument(err.Error())
	}

	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.stopEndTimerLocked()
	e.state = domain.StateLoading
	e.reciter = reciter
	e.chapter = chapter
	e.label = mushaf.Label(chapter)
	e.lastErr = ""
	e.basePos = 0
	e.anchorAt = time.Time{}
	e.duration = 0
	e.publishLocked()
	e.mu.Unlock()

	e.logger.Info("Loading chapter", "chapter", chapter, "reciter_id", reciter.ID, "auto_play", autoPlay)

	duration, err := e.pipeline.Prepare(ctx, url)

	if err == nil && duration <= 0 && e.durations != nil {
		// Streams without a length header still end where the timing
		// table says the last verse does.
		end, derr := e.durations.ChapterDuration(ctx, reciter.ID, chapter)
		if derr != nil {
			e.logger.Debug("No timing duration for chapter",
				"chapter", chapter, "reciter_id", reciter.ID, "error", derr)
		} else {
			duration = end
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.loadGen {
		// A newer load superseded this one; drop the result silently.
		return nil
	}

	if err != nil {
		e.state = domain.StateError
		e.lastErr = err.Error()
		e.publishLocked()
		e.logger.Error("Chapter load failed", "chapter", chapter, "reciter_id", reciter.ID, "error", err)
		return errors.PlaybackFaultf("load chapter %d: %v", chapter, err)
	}

	e.duration = duration
	if autoPlay {
		e.startClockLocked()
		e.state = domain.StatePlaying
	} else {
		e.state = domain.StatePaused
	}
	e.publishLocked()
	return nil
}

// Play resumes playback of the current item.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case domain.StatePlaying:
		return nil
	case domain.StatePaused:
		e.startClockLocked()
		e.state = domain.StatePlaying
		e.publishLocked()
		return nil
	case domain.StateStopped:
		return errors.Conflict("playback finished, load a chapter to start again")
	default:
		return errors.Conflict("nothing loaded to play")
	}
}

// Pause halts the clock, keeping the current item and position.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StatePlaying {
		return nil
	}
	e.basePos = e.positionLocked()
	e.anchorAt = time.Time{}
	e.stopEndTimerLocked()
	e.state = domain.StatePaused
	e.publishLocked()
	return nil
}

// Stop clears the current item and returns to Idle.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == domain.StateIdle {
		return nil
	}
	e.stopEndTimerLocked()
	e.state = domain.StateIdle
	e.reciter = nil
	e.chapter = 0
	e.label = ""
	e.lastErr = ""
	e.basePos = 0
	e.anchorAt = time.Time{}
	e.duration = 0
	e.publishLocked()
	return nil
}

// SeekTo moves the clock, clamped to [0, duration].
func (e *Engine) SeekTo(positionMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Active() {
		return errors.Conflict("nothing loaded to seek")
	}

	if positionMs < 0 {
		positionMs = 0
	}
	if e.duration > 0 && positionMs > e.duration {
		positionMs = e.duration
	}

	e.basePos = positionMs
	if e.state == domain.StatePlaying {
		e.anchorAt = time.Now()
		e.armEndTimerLocked()
	}
	e.publishLocked()
	return nil
}

// SetSpeed changes the playback rate, clamped to the supported range.
// Returns the applied rate.
func (e *Engine) SetSpeed(factor float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	factor = domain.ClampSpeed(factor)
	if e.state == domain.StatePlaying {
		// Re-anchor so already elapsed time keeps its old rate.
		e.basePos = e.positionLocked()
		e.anchorAt = time.Now()
	}
	e.speed = factor
	if e.state == domain.StatePlaying {
		e.armEndTimerLocked()
	}
	e.publishLocked()
	return factor
}

// SetRepeat toggles repeat-at-end. Returns the new flag.
func (e *Engine) SetRepeat(enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.repeat = enabled
	e.publishLocked()
	return e.repeat
}

// State returns the current lifecycle state.
func (e *Engine) State() domain.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns the current clock position in milliseconds.
func (e *Engine) Position() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

// Snapshot captures the full observable state.
func (e *Engine) Snapshot() domain.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Settings returns the preferences worth persisting.
func (e *Engine) Settings() *domain.PlayerSettings {
	e.mu.Lock()
	defer e.mu.Unlock()

	settings := &domain.PlayerSettings{
		Speed:  e.speed,
		Repeat: e.repeat,
	}
	if e.reciter != nil {
		settings.ReciterID = e.reciter.ID
	}
	return settings
}

// Release stops playback and drops the current item. Safe to call more
// than once; the engine can be reused with a new LoadChapter afterwards.
func (e *Engine) Release() {
	if err := e.Stop(); err != nil {
		e.logger.Warn("Engine release failed", "error", err)
	}
	e.logger.Info("Engine released")
}

// positionLocked reads the media clock. Callers hold e.mu.
func (e *Engine) positionLocked() int64 {
	pos := e.basePos
	if !e.anchorAt.IsZero() {
		elapsed := time.Since(e.anchorAt)
		pos += int64(float64(elapsed.Milliseconds()) * e.speed)
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}
	return pos
}

func (e *Engine) startClockLocked() {
	e.anchorAt = time.Now()
	e.armEndTimerLocked()
}

// armEndTimerLocked schedules the end-of-item transition from the
// remaining play time at the current rate.
func (e *Engine) armEndTimerLocked() {
	e.stopEndTimerLocked()
	if e.duration <= 0 {
		return
	}

	remaining := e.duration - e.positionLocked()
	if remaining < 0 {
		remaining = 0
	}
	wait := time.Duration(float64(remaining)/e.speed) * time.Millisecond
	e.endTimer = time.AfterFunc(wait, e.onItemEnd)
}

func (e *Engine) stopEndTimerLocked() {
	if e.endTimer != nil {
		e.endTimer.Stop()
		e.endTimer = nil
	}
}

// onItemEnd fires when the clock reaches the end of the item.
func (e *Engine) onItemEnd() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StatePlaying {
		return
	}

	if e.repeat {
		e.basePos = 0
		e.anchorAt = time.Now()
		e.armEndTimerLocked()
		e.publishLocked()
		e.logger.Debug("Item ended, repeating", "chapter", e.chapter)
		return
	}

	e.basePos = e.duration
	e.anchorAt = time.Time{}
	e.state = domain.StateStopped
	e.publishLocked()
	e.logger.Debug("Item ended", "chapter", e.chapter)
}

func (e *Engine) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		State:      e.state,
		Chapter:    e.chapter,
		Label:      e.label,
		PositionMs: e.positionLocked(),
		DurationMs: e.duration,
		Speed:      e.speed,
		Repeat:     e.repeat,
		Err:        e.lastErr,
		UpdatedAt:  time.Now(),
	}
	if e.reciter != nil {
		snap.ReciterID = e.reciter.ID
	}
	return snap
}

func (e *Engine) publishLocked() {
	snap := e.snapshotLocked()
	for _, fn := range e.notifiers {
		fn(snap)
	}
}
