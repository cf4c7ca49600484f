package domain

import "time"

// SessionSnapshot is the full observable state of the playback session,
// published to every connected observer whenever anything changes.
// Observers render from the snapshot alone; there are no deltas.
type SessionSnapshot struct {
	State      PlaybackState `json:"state"`
	ReciterID  int           `json:"reciter_id,omitempty"`
	Chapter    int           `json:"chapter,omitempty"`
	Label      string        `json:"label,omitempty"`
	Verse      int           `json:"verse,omitempty"`
	PositionMs int64         `json:"position_ms"`
	DurationMs int64         `json:"duration_ms,omitempty"`
	Speed      float64       `json:"speed"`
	Repeat     bool          `json:"repeat"`
	// Err carries the failure description while State is StateError.
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdleSnapshot is what a fresh session looks like before any load.
func IdleSnapshot(settings *PlayerSettings) SessionSnapshot {
	snap := SessionSnapshot{
		State:     StateIdle,
		Speed:     1.0,
		UpdatedAt: time.Now(),
	}
	if settings != nil {
		snap.ReciterID = settings.ReciterID
		snap.Speed = settings.Speed
		snap.Repeat = settings.Repeat
	}
	return snap
}
