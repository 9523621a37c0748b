package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	ws "github.com/stemsi/elearning/internal/websocket"
)

// Invalidator drops cached principals. *PrincipalService implements it.
type Invalidator interface {
	Invalidate(userIDs ...string)
	InvalidateAll()
}

// RoleChangedJob is queued whenever a role's permission set changes.
type RoleChangedJob struct {
	RoleID string    `json:"role_id"`
	At     time.Time `json:"at"`
}

// Notifier fans out principal changes: the local cache is invalidated
// synchronously, other instances are told over redis pub/sub and connected
// clients receive a session event. Publishing is best effort; failures are
// logged, never returned, because the database write already succeeded.
type Notifier struct {
	rdb        *redis.Client
	principals Invalidator
	log        zerolog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(rdb *redis.Client, principals Invalidator, log zerolog.Logger) *Notifier {
	return &Notifier{
		rdb:        rdb,
		principals: principals,
		log:        log.With().Str("component", "notifier").Logger(),
	}
}

// PrincipalChanged invalidates the users' cached principals and asks their
// clients to re-probe.
func (n *Notifier) PrincipalChanged(ctx context.Context, userIDs ...string) {
	n.principals.Invalidate(userIDs...)
	for _, id := range userIDs {
		n.publish(ctx, config.CacheKey.PermissionInvalidateChannel(), id)
		n.publishEvent(ctx, ws.SessionEvent{Event: ws.EventPrincipalChanged, UserID: id})
	}
}

// SessionRevoked tells the user's clients that a token is gone. An empty
// tokenID revokes every session of the user. Other instances drop their
// cached principal too, so a deleted user stops authenticating everywhere.
func (n *Notifier) SessionRevoked(ctx context.Context, userID, tokenID string) {
	n.principals.Invalidate(userID)
	n.publish(ctx, config.CacheKey.PermissionInvalidateChannel(), userID)
	n.publishEvent(ctx, ws.SessionEvent{Event: ws.EventSessionRevoked, UserID: userID, TokenID: tokenID})
}

// RoleChanged drops every cached principal and queues a job so the worker
// can notify each holder of the role.
func (n *Notifier) RoleChanged(ctx context.Context, roleID string) {
	n.principals.InvalidateAll()
	n.publish(ctx, config.CacheKey.PermissionInvalidateChannel(), invalidateAll)

	payload, _ := json.Marshal(RoleChangedJob{RoleID: roleID, At: time.Now().UTC()})
	if err := n.rdb.RPush(ctx, config.WorkerKey.RoleChangedQueue, payload).Err(); err != nil {
		n.log.Error().Err(err).Str("role_id", roleID).Msg("Failed to enqueue role change")
	}
}

func (n *Notifier) publishEvent(ctx context.Context, ev ws.SessionEvent) {
	ev.At = time.Now().UTC()
	payload, _ := json.Marshal(ev)
	n.publish(ctx, config.CacheKey.PrincipalEventsChannel(ev.UserID), string(payload))
}

func (n *Notifier) publish(ctx context.Context, channel, payload string) {
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.Error().Err(err).Str("channel", channel).Msg("Publish failed")
	}
}
