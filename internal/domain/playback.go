package domain

import "time"

// PlaybackState is the engine lifecycle state.
type PlaybackState string

const (
	StateIdle    PlaybackState = "idle"
	StateLoading PlaybackState = "loading"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateStopped PlaybackState = "stopped"
	StateError   PlaybackState = "error"
)

// Active reports whether the engine holds a loaded chapter in this state.
func (s PlaybackState) Active() bool {
	switch s {
	case StatePlaying, StatePaused:
		return true
	default:
		return false
	}
}

// Speed bounds and the stepped palette offered to clients.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// SpeedPalette lists the preset rates cycled by the speed toggle.
var SpeedPalette = []float64{0.75, 1.0, 1.25, 1.5, 1.75}

// ClampSpeed pins a requested rate into the supported range.
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// NextSpeed returns the palette entry after the current rate, wrapping
// past the last entry. A rate between palette stops advances to the
// first stop above it.
func NextSpeed(current float64) float64 {
	for _, s := range SpeedPalette {
		if s > current {
			return s
		}
	}
	return SpeedPalette[0]
}

// PlayerSettings are the persisted playback preferences restored on
// startup.
type PlayerSettings struct {
	ReciterID int       `json:"reciter_id"`
	Speed     float64   `json:"speed"`
	Repeat    bool      `json:"repeat"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPlayerSettings creates settings with defaults.
func NewPlayerSettings() *PlayerSettings {
	return &PlayerSettings{
		ReciterID: 0,
		Speed:     1.0,
		Repeat:    false,
		UpdatedAt: time.Now(),
	}
}

// Normalize clamps out-of-range fields loaded from older state.
func (s *PlayerSettings) Normalize() {
	if s.Speed == 0 {
		s.Speed = 1.0
	}
	s.Speed = ClampSpeed(s.Speed)
}
