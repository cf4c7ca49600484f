// Package mushaf holds static chapter metadata for the recitation corpus.
package mushaf

import (
	"fmt"

	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/errors"
)

// Chapter describes one chapter of the corpus.
type Chapter struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Verses int    `json:"verses"`
}

// Label renders the display label used for session titles, e.g. "Ya-Sin (36)".
func (c Chapter) Label() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Number)
}

// ByNumber returns the chapter metadata for n.
func ByNumber(n int) (Chapter, error) {
	if !domain.ValidChapter(n) {
		return Chapter{}, errors.InvalidArgumentf("chapter %d out of range [%d, %d]", n, domain.MinChapter, domain.MaxChapter)
	}
	return chapters[n-1], nil
}

// All returns the full chapter table in order.
func All() []Chapter {
	out := make([]Chapter, len(chapters))
	copy(out, chapters)
	return out
}

// VerseCount returns the number of verses in chapter n, or 0 when n is
// out of range.
func VerseCount(n int) int {
	if !domain.ValidChapter(n) {
		return 0
	}
	return chapters[n-1].Verses
}

// Label returns the display label for chapter n, or an empty string when
// n is out of range.
func Label(n int) string {
	c, err := ByNumber(n)
	if err != nil {
		return ""
	}
	return c.Label()
}
