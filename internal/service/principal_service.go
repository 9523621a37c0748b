package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/repository"
)

// invalidateAll is the payload broadcast when every cached principal must go.
const invalidateAll = "*"

// PrincipalService resolves a user ID into a principal with its effective
// permissions. Results are cached briefly and dropped whenever a role or a
// role assignment changes.
type PrincipalService struct {
	users UserStore
	cache *expirable.LRU[string, *authz.Principal]
	log   zerolog.Logger
}

// NewPrincipalService creates a PrincipalService with an LRU of the given size and TTL.
func NewPrincipalService(users UserStore, size int, ttl time.Duration, log zerolog.Logger) *PrincipalService {
	if size <= 0 {
		size = 1
	}
	return &PrincipalService{
		users: users,
		cache: expirable.NewLRU[string, *authz.Principal](size, nil, ttl),
		log:   log.With().Str("component", "principal_service").Logger(),
	}
}

// Load returns the principal for userID. Callers must not modify it.
func (s *PrincipalService) Load(ctx context.Context, userID string) (*authz.Principal, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	perms, err := s.users.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	p := user.Principal(perms)
	s.cache.Add(userID, p)
	return p, nil
}

// Invalidate drops cached principals for the given users.
func (s *PrincipalService) Invalidate(userIDs ...string) {
	for _, id := range userIDs {
		s.cache.Remove(id)
	}
}

// InvalidateAll drops every cached principal.
func (s *PrincipalService) InvalidateAll() {
	s.cache.Purge()
}

// Listen applies invalidations broadcast by other API instances until ctx
// is cancelled. Call in a goroutine.
func (s *PrincipalService) Listen(ctx context.Context, rdb *redis.Client) {
	sub := rdb.Subscribe(ctx, config.CacheKey.PermissionInvalidateChannel())
	defer sub.Close()

	s.log.Info().Msg("Listening for permission invalidations")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == invalidateAll {
				s.InvalidateAll()
				continue
			}
			s.Invalidate(msg.Payload)
		}
	}
}
