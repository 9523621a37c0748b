package model

import (
	"time"

	"github.com/stemsi/elearning/internal/authz"
)

// User is a platform account.
type User struct {
	ID           string          `json:"_id"`
	Email        string          `json:"email"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	PasswordHash string          `json:"-"`
	IsVerified   bool            `json:"isVerified"`
	Roles        []authz.RoleRef `json:"roles"`
	RoleNames    []string        `json:"roleNames"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Principal converts the user into an authenticated principal carrying the
// given effective permissions.
func (u *User) Principal(permissions []string) *authz.Principal {
	if permissions == nil {
		permissions = []string{}
	}
	return &authz.Principal{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Roles:       u.Roles,
		RoleNames:   u.RoleNames,
		Permissions: permissions,
		Verified:    u.IsVerified,
	}
}

// UserFilter narrows user listings.
type UserFilter struct {
	RoleID  string
	Search  string
	Page    int
	PerPage int
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// VerifyEmailRequest carries a verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// CreateUserRequest is the payload for creating a user.
type CreateUserRequest struct {
	Email     string   `json:"email" binding:"required,email,max=255"`
	FirstName string   `json:"firstName" binding:"required,min=1,max=100"`
	LastName  string   `json:"lastName" binding:"max=100"`
	Password  string   `json:"password" binding:"required,min=6,max=128"`
	RoleIDs   []string `json:"roles" binding:"omitempty,dive,uuid"`
}

// UpdateUserRequest is the payload for updating a user. An empty password
// leaves the current one in place.
type UpdateUserRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	FirstName string `json:"firstName" binding:"required,min=1,max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	Password  string `json:"password" binding:"omitempty,min=6,max=128"`
}

// AssignRolesRequest replaces a user's role assignment.
type AssignRolesRequest struct {
	RoleIDs []string `json:"roles" binding:"required,dive,uuid"`
}
