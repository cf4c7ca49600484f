package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/store"
)

func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "tartil-store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil, store.NewNoopEmitter())
	require.NoError(t, err)

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func TestPlayerSettingsRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	settings := domain.NewPlayerSettings()
	settings.ReciterID = 7
	settings.Speed = 1.5
	settings.Repeat = true

	err := s.UpsertPlayerSettings(ctx, settings)
	require.NoError(t, err)

	retrieved, err := s.GetPlayerSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, retrieved.ReciterID)
	assert.Equal(t, 1.5, retrieved.Speed)
	assert.True(t, retrieved.Repeat)
	assert.False(t, retrieved.UpdatedAt.IsZero())
}

func TestGetPlayerSettings_Missing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetPlayerSettings(context.Background())
	assert.ErrorIs(t, err, store.ErrPlayerSettingsNotFound)
}

func TestGetOrCreatePlayerSettings_MissingCreatesDefaults(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	settings, err := s.GetOrCreatePlayerSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, settings.Speed)
	assert.False(t, settings.Repeat)

	// Defaults should now be persisted.
	retrieved, err := s.GetPlayerSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, retrieved.Speed)
}

func TestGetOrCreatePlayerSettings_ExistingReturnsExisting(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	settings := domain.NewPlayerSettings()
	settings.Speed = 1.75
	require.NoError(t, s.UpsertPlayerSettings(ctx, settings))

	retrieved, err := s.GetOrCreatePlayerSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.75, retrieved.Speed)
}

func TestSetSelectedReciter_PreservesOtherSettings(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	settings := domain.NewPlayerSettings()
	settings.Speed = 1.25
	settings.Repeat = true
	require.NoError(t, s.UpsertPlayerSettings(ctx, settings))

	require.NoError(t, s.SetSelectedReciter(ctx, 42))

	retrieved, err := s.GetPlayerSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, retrieved.ReciterID)
	assert.Equal(t, 1.25, retrieved.Speed)
	assert.True(t, retrieved.Repeat)
}

func TestGetPlayerSettings_NormalizesSpeed(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	settings := &domain.PlayerSettings{ReciterID: 1, Speed: 9.0}
	require.NoError(t, s.UpsertPlayerSettings(ctx, settings))

	retrieved, err := s.GetPlayerSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxSpeed, retrieved.Speed)
}
