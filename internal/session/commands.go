package session

import (
	"context"
	"log/slog"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
	"github.com/tartilapp/tartil-server/internal/store"
	"github.com/tartilapp/tartil-server/internal/validation"
)

// Action identifies a command in the closed command set.
type Action string

// Supported command actions.
const (
	ActionLoadChapter   Action = "load_chapter"
	ActionChangeReciter Action = "change_reciter"
	ActionPlay          Action = "play"
	ActionPause         Action = "pause"
	ActionStop          Action = "stop"
	ActionSeek          Action = "seek"
	ActionSeekVerse     Action = "seek_verse"
	ActionNextVerse     Action = "next_verse"
	ActionPreviousVerse Action = "previous_verse"
	ActionSetSpeed      Action = "set_speed"
	ActionCycleSpeed    Action = "cycle_speed"
	ActionToggleRepeat  Action = "toggle_repeat"
)

// Command is the tagged union observers send to drive the session.
// Only the fields for the given action are consulted; each action
// validates its own arguments.
type Command struct {
	Action     Action  `json:"action" validate:"required,oneof=load_chapter change_reciter play pause stop seek seek_verse next_verse previous_verse set_speed cycle_speed toggle_repeat"`
	Chapter    int     `json:"chapter,omitempty"`
	ReciterID  int     `json:"reciter_id,omitempty"`
	PositionMs int64   `json:"position_ms,omitempty"`
	Verse      int     `json:"verse,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	AutoPlay   bool    `json:"auto_play,omitempty"`
}

// Result reports the outcome of a dispatched command. Snapshot always
// holds the post-command state; Speed and Repeat are set by the commands
// that change them so callers see the applied value directly.
type Result struct {
	Action   Action                 `json:"action"`
	Snapshot domain.SessionSnapshot `json:"snapshot"`
	Speed    *float64               `json:"speed,omitempty"`
	Repeat   *bool                  `json:"repeat,omitempty"`
}

// Per-action argument payloads, validated before touching the engine.

type loadChapterArgs struct {
	Chapter   int `json:"chapter" validate:"required,gt=0,lte=114"`
	ReciterID int `json:"reciter_id" validate:"omitempty,gt=0"`
}

type changeReciterArgs struct {
	ReciterID int `json:"reciter_id" validate:"required,gt=0"`
}

type seekArgs struct {
	PositionMs int64 `json:"position_ms" validate:"gte=0"`
}

type seekVerseArgs struct {
	Verse int `json:"verse" validate:"required,gt=0"`
}

type setSpeedArgs struct {
	Speed float64 `json:"speed" validate:"required,gt=0"`
}

// Engine is the slice of the playback engine the transport drives.
type Engine interface {
	LoadChapter(ctx context.Context, chapter int, reciter *domain.Reciter, autoPlay bool) error
	Play() error
	Pause() error
	Stop() error
	SeekTo(positionMs int64) error
	SetSpeed(factor float64) float64
	SetRepeat(enabled bool) bool
	Snapshot() domain.SessionSnapshot
	Settings() *domain.PlayerSettings
}

// Catalog resolves and selects reciters.
type Catalog interface {
	ByID(id int) (*domain.Reciter, error)
	Select(ctx context.Context, id int) (*domain.Reciter, error)
	CurrentSelection(ctx context.Context) *domain.Reciter
}

// Navigator moves playback between verses. Implemented by the verse
// tracker; wired after construction to break the dependency cycle.
type Navigator interface {
	SeekToVerse(ctx context.Context, verse int) error
	NextVerse(ctx context.Context) error
	PreviousVerse(ctx context.Context) error
}

// Service dispatches observer commands to the engine and collaborators.
type Service struct {
	engine   Engine
	catalog  Catalog
	nav      Navigator
	store    *store.Store
	validate *validation.Validator
	logger   *slog.Logger
}

// NewService creates a command dispatch service.
func NewService(engine Engine, cat Catalog, s *store.Store, v *validation.Validator, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		catalog:  cat,
		store:    s,
		validate: v,
		logger:   logger,
	}
}

// SetNavigator wires the verse navigator. Set once at startup, after the
// tracker is constructed.
func (s *Service) SetNavigator(nav Navigator) {
	s.nav = nav
}

// Dispatch validates and executes one command.
func (s *Service) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	if err := s.validate.Validate(cmd); err != nil {
		return nil, err
	}

	res := &Result{Action: cmd.Action}

	var err error
	switch cmd.Action {
	case ActionLoadChapter:
		err = s.loadChapter(ctx, cmd)
	case ActionChangeReciter:
		err = s.changeReciter(ctx, cmd)
	case ActionPlay:
		err = s.engine.Play()
	case ActionPause:
		err = s.pause(ctx)
	case ActionStop:
		err = s.stop(ctx)
	case ActionSeek:
		if err = s.validate.Validate(seekArgs{PositionMs: cmd.PositionMs}); err == nil {
			err = s.engine.SeekTo(cmd.PositionMs)
		}
	case ActionSeekVerse:
		if err = s.validate.Validate(seekVerseArgs{Verse: cmd.Verse}); err == nil {
			err = s.requireNav().SeekToVerse(ctx, cmd.Verse)
		}
	case ActionNextVerse:
		err = s.requireNav().NextVerse(ctx)
	case ActionPreviousVerse:
		err = s.requireNav().PreviousVerse(ctx)
	case ActionSetSpeed:
		if err = s.validate.Validate(setSpeedArgs{Speed: cmd.Speed}); err == nil {
			applied := s.engine.SetSpeed(cmd.Speed)
			res.Speed = &applied
			s.persistPreferences(ctx)
		}
	case ActionCycleSpeed:
		applied := s.engine.SetSpeed(domain.NextSpeed(s.engine.Snapshot().Speed))
		res.Speed = &applied
		s.persistPreferences(ctx)
	case ActionToggleRepeat:
		repeat := s.engine.SetRepeat(!s.engine.Snapshot().Repeat)
		res.Repeat = &repeat
		s.persistPreferences(ctx)
	default:
		return nil, errors.InvalidArgumentf("unknown action %q", cmd.Action)
	}

	if err != nil {
		return nil, err
	}

	res.Snapshot = s.engine.Snapshot()
	return res, nil
}

func (s *Service) loadChapter(ctx context.Context, cmd Command) error {
	args := loadChapterArgs{Chapter: cmd.Chapter, ReciterID: cmd.ReciterID}
	if err := s.validate.Validate(args); err != nil {
		return err
	}

	var reciter *domain.Reciter
	if args.ReciterID > 0 {
		r, err := s.catalog.ByID(args.ReciterID)
		if err != nil {
			return err
		}
		reciter = r
	} else {
		reciter = s.catalog.CurrentSelection(ctx)
	}

	return s.engine.LoadChapter(ctx, args.Chapter, reciter, cmd.AutoPlay)
}

// changeReciter selects a new reciter and, when a chapter is active,
// reloads it with the new audio source.
func (s *Service) changeReciter(ctx context.Context, cmd Command) error {
	args := changeReciterArgs{ReciterID: cmd.ReciterID}
	if err := s.validate.Validate(args); err != nil {
		return err
	}

	reciter, err := s.catalog.Select(ctx, args.ReciterID)
	if err != nil {
		return err
	}

	snap := s.engine.Snapshot()
	if snap.Chapter != 0 && snap.State.Active() {
		return s.engine.LoadChapter(ctx, snap.Chapter, reciter, snap.State == domain.StatePlaying)
	}
	return nil
}

func (s *Service) pause(ctx context.Context) error {
	if err := s.engine.Pause(); err != nil {
		return err
	}
	s.saveResumePoint(ctx)
	return nil
}

func (s *Service) stop(ctx context.Context) error {
	if err := s.engine.Stop(); err != nil {
		return err
	}
	if err := s.store.ClearResumePoint(ctx); err != nil {
		s.logger.Warn("Failed to clear resume point", "error", err)
	}
	return nil
}

func (s *Service) saveResumePoint(ctx context.Context) {
	snap := s.engine.Snapshot()
	if snap.Chapter == 0 {
		return
	}
	point := &store.ResumePoint{
		ReciterID:  snap.ReciterID,
		Chapter:    snap.Chapter,
		PositionMs: snap.PositionMs,
	}
	if err := s.store.SaveResumePoint(ctx, point); err != nil {
		s.logger.Warn("Failed to save resume point", "error", err)
	}
}

// persistPreferences folds the engine's current speed and repeat flag
// into the stored settings without clobbering the reciter selection.
func (s *Service) persistPreferences(ctx context.Context) {
	settings, err := s.store.GetOrCreatePlayerSettings(ctx)
	if err != nil {
		s.logger.Warn("Failed to load settings for persistence", "error", err)
		return
	}

	current := s.engine.Settings()
	settings.Speed = current.Speed
	settings.Repeat = current.Repeat
	if current.ReciterID != 0 {
		settings.ReciterID = current.ReciterID
	}

	if err := s.store.UpsertPlayerSettings(ctx, settings); err != nil {
		s.logger.Warn("Failed to persist settings", "error", err)
	}
}

func (s *Service) requireNav() Navigator {
	if s.nav != nil {
		return s.nav
	}
	return noNav{}
}

type noNav struct{}

func (noNav) SeekToVerse(context.Context, int) error {
	return errors.Conflict("verse navigation unavailable")
}
func (noNav) NextVerse(context.Context) error {
	return errors.Conflict("verse navigation unavailable")
}
func (noNav) PreviousVerse(context.Context) error {
	return errors.Conflict("verse navigation unavailable")
}
