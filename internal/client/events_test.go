package client

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	ws "github.com/stemsi/elearning/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerFollowsServerEvents(t *testing.T) {
	b := newFakeBackend(t)
	b.addUser("t@example.com", "secret123", true, []string{"teacher"}, "course:read")
	s := newTestStore(t, b)

	_, err := s.Login(context.Background(), Credentials{Email: "t@example.com", Password: "secret123"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewListener(s, b.eventsURL(), zerolog.Nop())
	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()

	select {
	case email := <-b.streams:
		assert.Equal(t, "t@example.com", email)
	case <-time.After(5 * time.Second):
		t.Fatal("listener never connected")
	}

	b.setPermissions("t@example.com", "course:read", "course:update")
	b.events <- ws.SessionEvent{Event: ws.EventPrincipalChanged, At: time.Now()}
	require.Eventually(t, func() bool { return s.HasPermission("course:update") }, 5*time.Second, 10*time.Millisecond)

	b.events <- ws.SessionEvent{Event: ws.EventSessionRevoked, At: time.Now()}
	require.Eventually(t, func() bool { return !s.Snapshot().LoggedIn }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, s.HasPermission("course:read"))

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerIdleWhileSignedOut(t *testing.T) {
	b := newFakeBackend(t)
	s := newTestStore(t, b)
	s.Clear("")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	NewListener(s, b.eventsURL(), zerolog.Nop()).Run(ctx)

	assert.Empty(t, b.streams)
}
