package service

import (
	"errors"

	"github.com/stemsi/elearning/internal/repository"
)

// Errors surfaced to handlers. Handlers map them to response codes.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrTokenRevoked             = errors.New("token has been revoked")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrNotFound                 = errors.New("not found")
	ErrEmailTaken               = errors.New("email already registered")
	ErrRoleNameTaken            = errors.New("role name already exists")
	ErrRoleInUse                = errors.New("role is assigned to users")
	ErrSystemRole               = errors.New("system roles cannot be modified")
	ErrUnknownPermission        = errors.New("unknown permission id")
	ErrUnknownRole              = errors.New("unknown role id")
	ErrSelfAction               = errors.New("cannot perform this action on your own account")
	ErrInvalidOrder             = errors.New("order must list every sibling exactly once")
	ErrInvalidQuiz              = errors.New("quiz answer index out of range")
)

// notFoundOr maps repository misses and ordering failures onto service errors
// and passes everything else through.
func notFoundOr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrInvalidOrder):
		return ErrInvalidOrder
	default:
		return err
	}
}
