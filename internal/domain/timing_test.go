package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testChapterTiming() *ChapterTiming {
	return &ChapterTiming{
		Chapter: 1,
		Verses: []VerseTiming{
			{Chapter: 1, Verse: 1, StartMs: 0, EndMs: 6000},
			{Chapter: 1, Verse: 2, StartMs: 6000, EndMs: 12000},
			{Chapter: 1, Verse: 3, StartMs: 12000, EndMs: 18500},
		},
	}
}

func TestChapterTiming_VerseAt(t *testing.T) {
	ct := testChapterTiming()

	assert.Equal(t, 1, ct.VerseAt(0))
	assert.Equal(t, 1, ct.VerseAt(5999))
	// Boundaries are half open: 6000 already belongs to verse 2.
	assert.Equal(t, 2, ct.VerseAt(6000))
	assert.Equal(t, 3, ct.VerseAt(18499))
	assert.Equal(t, 0, ct.VerseAt(18500))
	assert.Equal(t, 0, ct.VerseAt(99999))
}

func TestChapterTiming_VerseAt_LeadIn(t *testing.T) {
	ct := &ChapterTiming{
		Chapter: 2,
		Verses: []VerseTiming{
			{Chapter: 2, Verse: 1, StartMs: 4500, EndMs: 9000},
		},
	}

	// Positions before the first verse resolve to no verse.
	assert.Equal(t, 0, ct.VerseAt(0))
	assert.Equal(t, 0, ct.VerseAt(4499))
	assert.Equal(t, 1, ct.VerseAt(4500))
}

func TestChapterTiming_VerseStart(t *testing.T) {
	ct := testChapterTiming()

	start, ok := ct.VerseStart(2)
	assert.True(t, ok)
	assert.Equal(t, int64(6000), start)

	_, ok = ct.VerseStart(99)
	assert.False(t, ok)
}

func TestChapterTiming_Gaps(t *testing.T) {
	assert.Empty(t, testChapterTiming().Gaps())

	ct := &ChapterTiming{
		Chapter: 1,
		Verses: []VerseTiming{
			{Verse: 1, StartMs: 0, EndMs: 5000},
			{Verse: 2, StartMs: 5200, EndMs: 9000},
		},
	}
	assert.Equal(t, []int64{5000}, ct.Gaps())
}

func TestVerseTiming_Contains(t *testing.T) {
	v := VerseTiming{StartMs: 1000, EndMs: 2000}

	assert.False(t, v.Contains(999))
	assert.True(t, v.Contains(1000))
	assert.True(t, v.Contains(1999))
	assert.False(t, v.Contains(2000))
}
