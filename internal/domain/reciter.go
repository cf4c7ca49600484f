package domain

import (
	"fmt"
	"time"
)

// Chapter bounds for the recitation corpus.
const (
	MinChapter = 1
	MaxChapter = 114
)

// Tradition is the recitation transmission a reciter follows.
type Tradition string

const (
	TraditionHafs  Tradition = "hafs"
	TraditionWarsh Tradition = "warsh"
	TraditionQalun Tradition = "qalun"
	TraditionDuri  Tradition = "duri"
)

// Reciter is a narrator whose chapter recordings the engine can stream.
type Reciter struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	NameAr    string    `json:"name_ar,omitempty"`
	Tradition Tradition `json:"tradition"`
	// BaseURL is the remote root under which chapter files live.
	BaseURL string `json:"base_url"`
	// HasTiming reports whether a verse timing database is available locally.
	HasTiming bool      `json:"has_timing"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ChapterCode formats a chapter number as the three digit code used in
// recording filenames (1 -> "001", 114 -> "114").
func ChapterCode(chapter int) string {
	return fmt.Sprintf("%03d", chapter)
}

// ValidChapter reports whether n is a real chapter number.
func ValidChapter(n int) bool {
	return n >= MinChapter && n <= MaxChapter
}

// StreamURL builds the audio URL for one chapter recording.
// Layout: {base}/{code}.mp3
func (r *Reciter) StreamURL(chapter int) (string, error) {
	if !ValidChapter(chapter) {
		return "", fmt.Errorf("chapter %d out of range [%d, %d]", chapter, MinChapter, MaxChapter)
	}
	return fmt.Sprintf("%s/%s.mp3", r.BaseURL, ChapterCode(chapter)), nil
}
