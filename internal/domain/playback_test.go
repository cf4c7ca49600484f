package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, 1.0, ClampSpeed(1.0))
	assert.Equal(t, MinSpeed, ClampSpeed(0.1))
	assert.Equal(t, MaxSpeed, ClampSpeed(3.5))
	assert.Equal(t, MinSpeed, ClampSpeed(MinSpeed))
	assert.Equal(t, MaxSpeed, ClampSpeed(MaxSpeed))
}

func TestNextSpeed_CyclesPalette(t *testing.T) {
	assert.Equal(t, 1.0, NextSpeed(0.75))
	assert.Equal(t, 1.25, NextSpeed(1.0))
	assert.Equal(t, 1.75, NextSpeed(1.5))
	// Wraps back to the first stop after the last.
	assert.Equal(t, 0.75, NextSpeed(1.75))
	assert.Equal(t, 0.75, NextSpeed(2.0))
	// A rate between stops advances to the next stop above it.
	assert.Equal(t, 1.25, NextSpeed(1.1))
}

func TestPlaybackState_Active(t *testing.T) {
	assert.True(t, StatePlaying.Active())
	assert.True(t, StatePaused.Active())
	assert.False(t, StateIdle.Active())
	assert.False(t, StateLoading.Active())
	assert.False(t, StateStopped.Active())
	assert.False(t, StateError.Active())
}

func TestNewPlayerSettings_Defaults(t *testing.T) {
	settings := NewPlayerSettings()

	require.NotNil(t, settings)
	assert.Equal(t, 0, settings.ReciterID)
	assert.Equal(t, 1.0, settings.Speed)
	assert.False(t, settings.Repeat)
	assert.False(t, settings.UpdatedAt.IsZero())
}

func TestPlayerSettings_Normalize(t *testing.T) {
	s := &PlayerSettings{Speed: 0}
	s.Normalize()
	assert.Equal(t, 1.0, s.Speed)

	s = &PlayerSettings{Speed: 5.0}
	s.Normalize()
	assert.Equal(t, MaxSpeed, s.Speed)
}

func TestChapterCode(t *testing.T) {
	assert.Equal(t, "001", ChapterCode(1))
	assert.Equal(t, "036", ChapterCode(36))
	assert.Equal(t, "114", ChapterCode(114))
}

func TestReciter_StreamURL(t *testing.T) {
	r := &Reciter{ID: 7, BaseURL: "https://cdn.example.com/alafasy"}

	url, err := r.StreamURL(36)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/alafasy/036.mp3", url)

	_, err = r.StreamURL(0)
	assert.Error(t, err)
	_, err = r.StreamURL(115)
	assert.Error(t, err)
}

func TestIdleSnapshot(t *testing.T) {
	snap := IdleSnapshot(nil)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 1.0, snap.Speed)

	snap = IdleSnapshot(&PlayerSettings{ReciterID: 3, Speed: 1.5, Repeat: true})
	assert.Equal(t, 3, snap.ReciterID)
	assert.Equal(t, 1.5, snap.Speed)
	assert.True(t, snap.Repeat)
}
