package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/repository"
)

// UserService handles account management.
type UserService struct {
	users    UserStore
	roles    RoleStore
	auth     *AuthService
	notifier *Notifier
	log      zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, roles RoleStore, auth *AuthService, notifier *Notifier, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		roles:    roles,
		auth:     auth,
		notifier: notifier,
		log:      log.With().Str("component", "user_service").Logger(),
	}
}

// List returns a page of users and the total count.
func (s *UserService) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	return s.users.List(ctx, f)
}

// Get retrieves a single user.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

// Create registers an unverified user and returns the email verification
// token to deliver to them.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, string, error) {
	roleIDs, err := s.checkRoles(ctx, req.RoleIDs)
	if err != nil {
		return nil, "", err
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u, roleIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.auth.IssueVerificationToken(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}

	s.log.Info().Str("user_id", u.ID).Int("roles", len(roleIDs)).Msg("User created")
	created, err := s.Get(ctx, u.ID)
	return created, token, err
}

// Update changes profile fields and optionally the password.
func (s *UserService) Update(ctx context.Context, id string, req model.UpdateUserRequest) (*model.User, error) {
	var hash string
	if req.Password != "" {
		h, err := s.auth.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}

	u := &model.User{ID: id, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	if err := s.users.Update(ctx, u, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, notFoundOr(err)
	}

	s.notifier.PrincipalChanged(ctx, id)
	return s.Get(ctx, id)
}

// AssignRoles replaces the user's roles. Operators cannot change their own
// roles so an admin cannot lock themselves out.
func (s *UserService) AssignRoles(ctx context.Context, actorID, id string, roleIDs []string) (*model.User, error) {
	if actorID == id {
		return nil, ErrSelfAction
	}
	roleIDs, err := s.checkRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	if err := s.users.ReplaceRoles(ctx, id, roleIDs); err != nil {
		return nil, notFoundOr(err)
	}

	s.notifier.PrincipalChanged(ctx, id)
	s.log.Info().Str("user_id", id).Str("actor_id", actorID).Strs("roles", roleIDs).Msg("Roles assigned")
	return s.Get(ctx, id)
}

// Verify marks a user's email verified without a token.
func (s *UserService) Verify(ctx context.Context, id string) error {
	if err := s.users.SetVerified(ctx, id, true); err != nil {
		return notFoundOr(err)
	}
	s.notifier.PrincipalChanged(ctx, id)
	return nil
}

// Delete removes an account other than the caller's own.
func (s *UserService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrSelfAction
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return notFoundOr(err)
	}
	s.notifier.SessionRevoked(ctx, id, "")
	s.log.Info().Str("user_id", id).Str("actor_id", actorID).Msg("User deleted")
	return nil
}

func (s *UserService) checkRoles(ctx context.Context, ids []string) ([]string, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}
	n, err := s.roles.CountExisting(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check roles: %w", err)
	}
	if n != len(ids) {
		return nil, ErrUnknownRole
	}
	return ids, nil
}
