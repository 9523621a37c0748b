package client

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	ws "github.com/stemsi/elearning/internal/websocket"
)

// Listener keeps the store in step with server-side changes: it re-probes
// details on principal_changed and clears the session on session_revoked.
// It only holds a connection while the store is signed in.
type Listener struct {
	store   *Store
	url     string
	dialer  *websocket.Dialer
	backoff time.Duration
	log     zerolog.Logger
}

// NewListener returns a listener for the events endpoint at eventsURL.
func NewListener(store *Store, eventsURL string, log zerolog.Logger) *Listener {
	return &Listener{
		store: store,
		url:   eventsURL,
		dialer: &websocket.Dialer{
			Jar:              store.API().Jar(),
			HandshakeTimeout: 10 * time.Second,
		},
		backoff: 2 * time.Second,
		log:     log.With().Str("component", "events_listener").Logger(),
	}
}

// Run blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) {
	changes, unsubscribe := l.store.Subscribe()
	defer unsubscribe()

	for {
		if !l.store.Snapshot().LoggedIn {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				continue
			}
		}

		err := l.listen(ctx, changes)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Warn().Err(err).Dur("retry_in", l.backoff).Msg("Event stream dropped")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.backoff):
		}
	}
}

// listen holds one connection until it drops, ctx ends or the store signs out.
func (l *Listener) listen(ctx context.Context, changes <-chan struct{}) error {
	conn, resp, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			// The cookie no longer authenticates; let the probe decide.
			_, _ = l.store.RetrieveDetails(ctx)
		}
		return err
	}
	defer conn.Close()
	l.log.Debug().Msg("Event stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-changes:
				if !l.store.Snapshot().LoggedIn {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		var ev ws.SessionEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		l.handle(ctx, ev)
	}
}

func (l *Listener) handle(ctx context.Context, ev ws.SessionEvent) {
	switch ev.Event {
	case ws.EventPrincipalChanged:
		l.log.Info().Str("user_id", ev.UserID).Msg("Principal changed, refreshing session")
		if _, err := l.store.RetrieveDetails(ctx); err != nil {
			l.log.Warn().Err(err).Msg("Refresh after principal change failed")
		}
	case ws.EventSessionRevoked:
		l.log.Info().Str("user_id", ev.UserID).Msg("Session revoked by server")
		l.store.Clear("Your session was ended.")
	}
}
