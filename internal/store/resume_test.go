package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartilapp/tartil-server/internal/store"
)

func TestResumePointRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	point := &store.ResumePoint{ReciterID: 3, Chapter: 36, PositionMs: 125000}
	require.NoError(t, s.SaveResumePoint(ctx, point))

	retrieved, err := s.GetResumePoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, retrieved.ReciterID)
	assert.Equal(t, 36, retrieved.Chapter)
	assert.Equal(t, int64(125000), retrieved.PositionMs)
	assert.False(t, retrieved.UpdatedAt.IsZero())
}

func TestGetResumePoint_Missing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetResumePoint(context.Background())
	assert.ErrorIs(t, err, store.ErrResumePointNotFound)
}

func TestClearResumePoint(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.SaveResumePoint(ctx, &store.ResumePoint{Chapter: 1}))
	require.NoError(t, s.ClearResumePoint(ctx))

	_, err := s.GetResumePoint(ctx)
	assert.ErrorIs(t, err, store.ErrResumePointNotFound)

	// Clearing an already empty store is not an error.
	assert.NoError(t, s.ClearResumePoint(ctx))
}
