package api

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartilapp/tartil-server/internal/catalog"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/http/response"
	"github.com/tartilapp/tartil-server/internal/player"
	"github.com/tartilapp/tartil-server/internal/ratelimit"
	"github.com/tartilapp/tartil-server/internal/session"
	"github.com/tartilapp/tartil-server/internal/store"
	"github.com/tartilapp/tartil-server/internal/timing"
	"github.com/tartilapp/tartil-server/internal/validation"
)

// fakePipeline resolves every load instantly with a fixed duration.
type fakePipeline struct {
	duration int64
}

func (f *fakePipeline) Prepare(_ context.Context, _ string) (int64, error) {
	return f.duration, nil
}

// setupTestServer wires a server against real services on temp storage.
func setupTestServer(t *testing.T) (server *Server, cleanup func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "tartil-api-test-*")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := session.NewHub(logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Start(hubCtx)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), logger, hub)
	require.NoError(t, err)

	index, err := timing.NewIndex(filepath.Join(tmpDir, "timings"), 10*time.Millisecond, logger)
	require.NoError(t, err)

	catalogService := catalog.New(s, index, hub, logger, "", nil)

	engine := player.New(&fakePipeline{duration: 60000}, func(snap domain.SessionSnapshot) {
		hub.Emit(session.NewSnapshotEvent(snap))
	}, logger)

	sessionService := session.NewService(engine, catalogService, s, validation.New(), logger)
	streamHandler := session.NewStreamHandler(hub, logger)
	limiter := ratelimit.New(100, 100)

	server = NewServer(s, catalogService, index, sessionService, hub, streamHandler, limiter, logger)

	cleanup = func() {
		hubCancel()
		limiter.Stop()
		index.ClearCache()
		_ = s.Close()            //nolint:errcheck // Cleanup function
		_ = os.RemoveAll(tmpDir) //nolint:errcheck // Cleanup function
	}

	return server, cleanup
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var result response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestHealthCheck(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	assert.True(t, result.Success)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "healthy", data["status"])
}

func TestListChapters(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/chapters", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	chapters, ok := result.Data.([]any)
	require.True(t, ok)
	assert.Len(t, chapters, 114)
}

func TestGetChapter(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/chapters/36", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ya-Sin", data["name"])
	assert.EqualValues(t, 83, data["verses"])
}

func TestGetChapter_OutOfRange(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/chapters/115", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/v1/chapters/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReciters(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/reciters", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	reciters, ok := result.Data.([]any)
	require.True(t, ok)
	assert.NotEmpty(t, reciters)
}

func TestListReciters_TimedOnly(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// Fresh timing dir holds no databases, so nothing is timed.
	w := doJSON(t, server, http.MethodGet, "/api/v1/reciters?timed=true", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	reciters, _ := result.Data.([]any)
	assert.Empty(t, reciters)
}

func TestListReciters_LangScopedSearch(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// A Latin-name query scoped to Arabic matches nothing.
	w := doJSON(t, server, http.MethodGet, "/api/v1/reciters?q=Alafasy&lang=ar", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	result := decodeEnvelope(t, w)
	reciters, _ := result.Data.([]any)
	assert.Empty(t, reciters)

	w = doJSON(t, server, http.MethodGet, "/api/v1/reciters?q=Alafasy&lang=en", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	result = decodeEnvelope(t, w)
	reciters, ok := result.Data.([]any)
	require.True(t, ok)
	assert.Len(t, reciters, 1)
}

func TestGetReciter_NotFound(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/reciters/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelection_RoundTrip(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// Default selection before any choice is made.
	w := doJSON(t, server, http.MethodGet, "/api/v1/reciters/selection", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Select reciter 2 and read it back.
	w = doJSON(t, server, http.MethodPut, "/api/v1/reciters/selection", map[string]int{"reciter_id": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/v1/reciters/selection", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, data["id"])
}

func TestSetSelection_UnknownReciter(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodPut, "/api/v1/reciters/selection", map[string]int{"reciter_id": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetChapterTiming(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	writeTimingDB(t, server, 7)

	w := doJSON(t, server, http.MethodGet, "/api/v1/timings/7/chapters/1", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	verses, ok := data["verses"].([]any)
	require.True(t, ok)
	assert.Len(t, verses, 7)
}

func TestGetChapterTiming_NoDatabase(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/timings/42/chapters/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreloadTimings(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	writeTimingDB(t, server, 7)

	w := doJSON(t, server, http.MethodPost, "/api/v1/timings/7/preload", PreloadRequest{Chapters: []int{1}})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/v1/timings/7/preload", PreloadRequest{Chapters: []int{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearTimingCache(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodDelete, "/api/v1/timings/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetSession_IdleBeforeAnyCommand(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/session", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(domain.StateIdle), data["state"])
}

func TestPostCommand_LoadChapter(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodPost, "/api/v1/session/commands", session.Command{
		Action:  session.ActionLoadChapter,
		Chapter: 36,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	require.True(t, result.Success)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	snap, ok := data["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 36, snap["chapter"])
	assert.Equal(t, string(domain.StatePaused), snap["state"])
}

func TestPostCommand_InvalidChapter(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodPost, "/api/v1/session/commands", session.Command{
		Action:  session.ActionLoadChapter,
		Chapter: 999,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostCommand_PlayWhileIdle(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodPost, "/api/v1/session/commands", session.Command{
		Action: session.ActionPlay,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostCommand_MalformedBody(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/commands", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResumePoint_NoneSaved(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodGet, "/api/v1/session/resume", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetResumePoint_AfterPause(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, server, http.MethodPost, "/api/v1/session/commands", session.Command{
		Action:   session.ActionLoadChapter,
		Chapter:  1,
		AutoPlay: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodPost, "/api/v1/session/commands", session.Command{
		Action: session.ActionPause,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server, http.MethodGet, "/api/v1/session/resume", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	result := decodeEnvelope(t, w)
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, data["chapter"])
}

func TestCommandRateLimit(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	server.limiter.Stop()
	server.limiter = ratelimit.New(1, 2)
	defer server.limiter.Stop()

	var limited bool
	for range 5 {
		w := doJSON(t, server, http.MethodPost, "/api/v1/session/commands", session.Command{
			Action: session.ActionToggleRepeat,
		})
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}

// writeTimingDB seeds a reciter timing database with seven one-second
// verses in chapter 1.
func writeTimingDB(t *testing.T, server *Server, reciterID int) {
	t.Helper()

	table := &domain.ChapterTiming{Chapter: 1}
	for v := 1; v <= 7; v++ {
		table.Verses = append(table.Verses, domain.VerseTiming{
			Chapter: 1,
			Verse:   v,
			StartMs: int64(v-1) * 1000,
			EndMs:   int64(v) * 1000,
		})
	}

	path := filepath.Join(server.timingIndex.Dir(), fmt.Sprintf("%d.db", reciterID))
	require.NoError(t, timing.CreateDatabase(path, table))
}
