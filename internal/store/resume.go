package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tartilapp/tartil-server/internal/errors"
)

const resumePointKey = "session:resume"

// ErrResumePointNotFound is returned when no resume point has been saved.
var ErrResumePointNotFound = errors.NotFound("resume point not found")

// ResumePoint records where playback last stood so a restarted server can
// offer to continue from the same verse.
type ResumePoint struct {
	ReciterID  int       `json:"reciter_id"`
	Chapter    int       `json:"chapter"`
	PositionMs int64     `json:"position_ms"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetResumePoint retrieves the last saved playback position.
func (s *Store) GetResumePoint(ctx context.Context) (*ResumePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var point ResumePoint

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(resumePointKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrResumePointNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &point)
		})
	})

	if err != nil {
		return nil, err
	}
	return &point, nil
}

// SaveResumePoint persists the current playback position.
func (s *Store) SaveResumePoint(ctx context.Context, point *ResumePoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	point.UpdatedAt = time.Now()
	data, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("marshal resume point: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(resumePointKey), data)
	})
}

// ClearResumePoint removes the saved position.
func (s *Store) ClearResumePoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(resumePointKey))
	})
}
