package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
)

const playerSettingsKey = "settings:player"

// ErrPlayerSettingsNotFound is returned when no settings have been saved yet.
var ErrPlayerSettingsNotFound = errors.NotFound("player settings not found")

// SettingsChangedEvent is emitted whenever player settings are written.
type SettingsChangedEvent struct {
	Settings *domain.PlayerSettings `json:"settings"`
}

// GetPlayerSettings retrieves the persisted playback preferences.
func (s *Store) GetPlayerSettings(ctx context.Context) (*domain.PlayerSettings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var settings domain.PlayerSettings

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(playerSettingsKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrPlayerSettingsNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &settings)
		})
	})

	if err != nil {
		return nil, err
	}

	settings.Normalize()
	return &settings, nil
}

// UpsertPlayerSettings creates or updates the playback preferences.
func (s *Store) UpsertPlayerSettings(ctx context.Context, settings *domain.PlayerSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	settings.UpdatedAt = time.Now()
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(playerSettingsKey), data)
	})
	if err != nil {
		return err
	}

	s.emit(SettingsChangedEvent{Settings: settings})
	return nil
}

// GetOrCreatePlayerSettings retrieves settings or creates defaults if not found.
func (s *Store) GetOrCreatePlayerSettings(ctx context.Context) (*domain.PlayerSettings, error) {
	settings, err := s.GetPlayerSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrPlayerSettingsNotFound) {
		return nil, err
	}

	settings = domain.NewPlayerSettings()
	if err := s.UpsertPlayerSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SetSelectedReciter records the active reciter, preserving other settings.
func (s *Store) SetSelectedReciter(ctx context.Context, reciterID int) error {
	settings, err := s.GetOrCreatePlayerSettings(ctx)
	if err != nil {
		return err
	}
	settings.ReciterID = reciterID
	return s.UpsertPlayerSettings(ctx, settings)
}
