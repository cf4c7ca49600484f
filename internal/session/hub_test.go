package session_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartilapp/tartil-server/internal/domain"
	"github.com/tartilapp/tartil-server/internal/session"
)

func startTestHub(t *testing.T) (*session.Hub, context.CancelFunc) {
	t.Helper()
	hub := session.NewHub(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)
	return hub, cancel
}

func waitForEvent(t *testing.T, obs *session.Observer, eventType session.EventType) session.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-obs.EventChan:
			if event.Type == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
		}
	}
}

func TestHub_BroadcastsToAllObservers(t *testing.T) {
	hub, cancel := startTestHub(t)
	defer cancel()

	first, err := hub.Connect()
	require.NoError(t, err)
	second, err := hub.Connect()
	require.NoError(t, err)
	assert.Equal(t, 2, hub.ObserverCount())

	hub.Emit(session.NewSnapshotEvent(domain.SessionSnapshot{State: domain.StatePlaying}))

	for _, obs := range []*session.Observer{first, second} {
		event := waitForEvent(t, obs, session.EventSnapshot)
		snap, ok := event.Data.(domain.SessionSnapshot)
		require.True(t, ok)
		assert.Equal(t, domain.StatePlaying, snap.State)
	}
}

func TestHub_LateJoinerReceivesLatestSnapshot(t *testing.T) {
	hub, cancel := startTestHub(t)
	defer cancel()

	// Broadcast two snapshots with nobody listening.
	hub.Emit(session.NewSnapshotEvent(domain.SessionSnapshot{State: domain.StateLoading}))
	hub.Emit(session.NewSnapshotEvent(domain.SessionSnapshot{State: domain.StatePlaying, Chapter: 36}))

	// Give the broadcast loop time to retain the latest.
	require.Eventually(t, func() bool {
		_, ok := hub.LatestSnapshot()
		return ok
	}, time.Second, 10*time.Millisecond)

	obs, err := hub.Connect()
	require.NoError(t, err)
	defer hub.Disconnect(obs.ID)

	// Only the latest snapshot is replayed, never history.
	event := waitForEvent(t, obs, session.EventSnapshot)
	snap, ok := event.Data.(domain.SessionSnapshot)
	require.True(t, ok)
	assert.Equal(t, domain.StatePlaying, snap.State)
	assert.Equal(t, 36, snap.Chapter)
}

func TestHub_ConnectDuringBroadcastNeverMissesSnapshot(t *testing.T) {
	hub, cancel := startTestHub(t)
	defer cancel()

	// Race Connect against a snapshot broadcast; the observer must see
	// that snapshot either replayed from retention or delivered live.
	for i := 1; i <= 50; i++ {
		event := session.NewSnapshotEvent(domain.SessionSnapshot{
			State:      domain.StatePlaying,
			PositionMs: int64(i),
		})

		var obs *session.Observer
		var connectErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Emit(event)
		}()
		go func() {
			defer wg.Done()
			obs, connectErr = hub.Connect()
		}()
		wg.Wait()
		require.NoError(t, connectErr)

		deadline := time.After(2 * time.Second)
	recv:
		for {
			select {
			case got := <-obs.EventChan:
				snap, ok := got.Data.(domain.SessionSnapshot)
				if ok && snap.PositionMs >= int64(i) {
					break recv
				}
			case <-deadline:
				t.Fatalf("observer missed snapshot %d", i)
			}
		}
		hub.Disconnect(obs.ID)
	}
}

func TestHub_DisconnectStopsDelivery(t *testing.T) {
	hub, cancel := startTestHub(t)
	defer cancel()

	obs, err := hub.Connect()
	require.NoError(t, err)

	hub.Disconnect(obs.ID)
	assert.Equal(t, 0, hub.ObserverCount())

	// Disconnecting twice is safe.
	hub.Disconnect(obs.ID)

	// The done channel is closed.
	select {
	case <-obs.Done:
	default:
		t.Fatal("expected done channel to be closed")
	}
}

func TestHub_EmitWrapsCollaboratorEvents(t *testing.T) {
	hub, cancel := startTestHub(t)
	defer cancel()

	obs, err := hub.Connect()
	require.NoError(t, err)
	defer hub.Disconnect(obs.ID)

	hub.Emit(session.NewVerseChangedEvent(36, 12))

	event := waitForEvent(t, obs, session.EventVerseChanged)
	change, ok := event.Data.(session.VerseChange)
	require.True(t, ok)
	assert.Equal(t, 36, change.Chapter)
	assert.Equal(t, 12, change.Verse)
}

func TestHub_ShutdownClosesObservers(t *testing.T) {
	hub := session.NewHub(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	obs, err := hub.Connect()
	require.NoError(t, err)

	// Stop the broadcast loop first, then drain.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, hub.Shutdown(shutdownCtx))

	// Events emitted after shutdown are dropped silently.
	hub.Emit(session.NewHeartbeatEvent())

	require.Eventually(t, func() bool {
		select {
		case <-obs.Done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
