package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/service"
)

// RoleHolders resolves which users currently hold a role.
type RoleHolders interface {
	IDsByRole(ctx context.Context, roleID string) ([]string, error)
}

// PrincipalNotifier is satisfied by *service.Notifier.
type PrincipalNotifier interface {
	PrincipalChanged(ctx context.Context, userIDs ...string)
}

// RoleChangeWorker consumes role_changed_queue and tells every holder of a
// changed role that their permissions moved.
type RoleChangeWorker struct {
	rdb      *redis.Client
	holders  RoleHolders
	notifier PrincipalNotifier
	log      zerolog.Logger
	// retryDelay is how long a failed job waits before the next pop.
	retryDelay time.Duration
}

// NewRoleChangeWorker creates a new RoleChangeWorker.
func NewRoleChangeWorker(rdb *redis.Client, holders RoleHolders, notifier PrincipalNotifier, log zerolog.Logger) *RoleChangeWorker {
	return &RoleChangeWorker{
		rdb:      rdb,
		holders:  holders,
		notifier: notifier,
		log:      log.With().Str("component", "role_change_worker").Logger(),

		retryDelay: 5 * time.Second,
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *RoleChangeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *RoleChangeWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.RoleChangedQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.Handle(ctx, []byte(result[1])); err != nil {
		w.log.Error().Err(err).Dur("retry_in", w.retryDelay).Msg("Role change failed, re-queued")
		// The job must survive shutdown, so the push ignores cancellation.
		if err := w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.RoleChangedQueue, result[1]).Err(); err != nil {
			w.log.Error().Err(err).Str("payload", result[1]).Msg("Failed to re-queue role change, job lost")
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// Handle processes one queued job. Malformed payloads are logged and dropped.
func (w *RoleChangeWorker) Handle(ctx context.Context, payload []byte) error {
	var job service.RoleChangedJob
	if err := json.Unmarshal(payload, &job); err != nil || job.RoleID == "" {
		w.log.Error().Err(err).Str("payload", string(payload)).Msg("Dropping malformed job")
		return nil
	}

	userIDs, err := w.holders.IDsByRole(ctx, job.RoleID)
	if err != nil {
		return err
	}
	if len(userIDs) > 0 {
		w.notifier.PrincipalChanged(ctx, userIDs...)
	}

	w.log.Info().Str("role_id", job.RoleID).Int("users", len(userIDs)).Msg("Role change propagated")
	return nil
}
