package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/elearning/internal/config"
	ws "github.com/stemsi/elearning/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierPublishesSessionEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sub := env.rdb.Subscribe(ctx, config.CacheKey.PrincipalEventsChannel("u-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	env.notifier.PrincipalChanged(ctx, "u-1")
	env.notifier.SessionRevoked(ctx, "u-1", "jti-1")

	var got []ws.Event
	for range 2 {
		msg, err := sub.ReceiveTimeout(ctx, time.Second)
		require.NoError(t, err)
		m, ok := msg.(*redis.Message)
		require.True(t, ok, "unexpected %T", msg)
		var ev ws.SessionEvent
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &ev))
		assert.Equal(t, "u-1", ev.UserID)
		got = append(got, ev.Event)
	}
	assert.Equal(t, []ws.Event{ws.EventPrincipalChanged, ws.EventSessionRevoked}, got)
}
