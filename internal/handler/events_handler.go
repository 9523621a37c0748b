package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/response"
	ws "github.com/stemsi/elearning/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients such as the console send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// EventsHandler streams session events to connected clients.
type EventsHandler struct {
	rdb      *redis.Client
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(rdb *redis.Client, log zerolog.Logger, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		rdb:      rdb,
		log:      log.With().Str("component", "events_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionEvents godoc
// WS /ws/v1/session/events
// Relays principal_changed and session_revoked events for the caller.
// The stream closes after a session_revoked event that concerns it.
func (h *EventsHandler) SessionEvents(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	sub := h.rdb.Subscribe(ctx, config.CacheKey.PrincipalEventsChannel(claims.UserID))
	defer sub.Close()

	wsLog := h.log.With().Str("user_id", claims.UserID).Logger()
	wsLog.Info().Msg("Event stream opened")

	// The reader only answers application pings and notices disconnects.
	pongs := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.KeepAlive(conn)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	}()

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()
	events := sub.Channel()

	for {
		select {
		case <-closed:
			wsLog.Debug().Msg("Event stream closed")
			return
		case <-ctx.Done():
			return
		case <-pongs:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			var ev ws.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				wsLog.Error().Err(err).Msg("Malformed session event")
				continue
			}
			if !ev.Concerns(claims.ID) {
				continue
			}
			if err := ws.WriteTyped(conn, ev); err != nil {
				return
			}
			if ev.Event == ws.EventSessionRevoked {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session revoked"),
					time.Now().Add(ws.WriteWait))
				wsLog.Info().Msg("Event stream closed after revocation")
				return
			}
		}
	}
}
