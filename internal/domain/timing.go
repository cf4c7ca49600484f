package domain

import "time"

// VerseTiming marks the interval one verse occupies inside a chapter
// recording. Intervals are half open: a position p belongs to the verse
// when StartMs <= p < EndMs.
type VerseTiming struct {
	Chapter int   `json:"chapter"`
	Verse   int   `json:"verse"`
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// Duration returns the length of the verse interval.
func (t VerseTiming) Duration() time.Duration {
	return time.Duration(t.EndMs-t.StartMs) * time.Millisecond
}

// Contains reports whether position p (milliseconds) falls inside the
// verse interval.
func (t VerseTiming) Contains(p int64) bool {
	return p >= t.StartMs && p < t.EndMs
}

// ChapterTiming is the ordered timing table for one chapter recording.
type ChapterTiming struct {
	Chapter int           `json:"chapter"`
	Verses  []VerseTiming `json:"verses"`
}

// VerseAt returns the verse containing position p, or 0 when p falls
// outside every interval (lead-in audio, gaps, past the last verse).
func (c *ChapterTiming) VerseAt(p int64) int {
	// Tables hold at most 286 verses; binary search buys nothing here.
	for _, v := range c.Verses {
		if v.Contains(p) {
			return v.Verse
		}
	}
	return 0
}

// VerseStart returns the start position of the given verse, or false
// when the chapter has no such verse.
func (c *ChapterTiming) VerseStart(verse int) (int64, bool) {
	for _, v := range c.Verses {
		if v.Verse == verse {
			return v.StartMs, true
		}
	}
	return 0, false
}

// EndMs returns the end of the last verse interval, the effective
// length of the timed portion of the recording. Zero for empty tables.
func (c *ChapterTiming) EndMs() int64 {
	if len(c.Verses) == 0 {
		return 0
	}
	return c.Verses[len(c.Verses)-1].EndMs
}

// VerseCount returns the number of timed verses.
func (c *ChapterTiming) VerseCount() int {
	return len(c.Verses)
}

// Gaps returns the positions where consecutive verse intervals are not
// contiguous (previous EndMs != next StartMs). Used for diagnostics on
// freshly loaded tables.
func (c *ChapterTiming) Gaps() []int64 {
	var gaps []int64
	for i := 1; i < len(c.Verses); i++ {
		if c.Verses[i-1].EndMs != c.Verses[i].StartMs {
			gaps = append(gaps, c.Verses[i-1].EndMs)
		}
	}
	return gaps
}
