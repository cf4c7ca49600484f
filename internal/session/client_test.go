package session_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartilapp/tartil-server/internal/errors"
	"github.com/tartilapp/tartil-server/internal/session"
)

func TestClient_SendWhileDisconnected(t *testing.T) {
	svc, _, _, _, _ := setupService(t)
	client := session.NewClient(func(context.Context) (*session.Service, error) {
		return svc, nil
	}, slog.New(slog.DiscardHandler))

	// Commands are rejected immediately, never queued.
	_, err := client.Send(context.Background(), session.Command{Action: session.ActionPlay})
	assert.ErrorIs(t, err, errors.ErrTransportUnavailable)
	assert.False(t, client.Connected())
}

func TestClient_ConnectThenSend(t *testing.T) {
	svc, engine, _, _, _ := setupService(t)
	client := session.NewClient(func(context.Context) (*session.Service, error) {
		return svc, nil
	}, slog.New(slog.DiscardHandler))

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.Connected())

	_, err := client.Send(context.Background(), session.Command{Action: session.ActionPlay})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.playCalls)
}

func TestClient_DisconnectAndReconnect(t *testing.T) {
	svc, engine, _, _, _ := setupService(t)
	client := session.NewClient(func(context.Context) (*session.Service, error) {
		return svc, nil
	}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	client.Disconnect()

	// Mid-session disconnect: commands fail with a transport error.
	_, err := client.Send(ctx, session.Command{Action: session.ActionPlay})
	assert.ErrorIs(t, err, errors.ErrTransportUnavailable)
	assert.Equal(t, 0, engine.playCalls)

	// After reconnecting the same command succeeds.
	require.NoError(t, client.Connect(ctx))
	_, err = client.Send(ctx, session.Command{Action: session.ActionPlay})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.playCalls)
}

func TestClient_ConnectRetriesWithBackoff(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	var attempts atomic.Int32
	client := session.NewClient(func(context.Context) (*session.Service, error) {
		if attempts.Add(1) < 3 {
			return nil, assert.AnError
		}
		return svc, nil
	}, slog.New(slog.DiscardHandler))

	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, int32(3), attempts.Load())
	assert.True(t, client.Connected())
}

func TestClient_ConnectHonorsContext(t *testing.T) {
	client := session.NewClient(func(context.Context) (*session.Service, error) {
		return nil, assert.AnError
	}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Connect(ctx)
	assert.ErrorIs(t, err, errors.ErrTransportUnavailable)
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	var attempts atomic.Int32
	client := session.NewClient(func(context.Context) (*session.Service, error) {
		attempts.Add(1)
		return svc, nil
	}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Connect(ctx))
	assert.Equal(t, int32(1), attempts.Load())
}
