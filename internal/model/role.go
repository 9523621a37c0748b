package model

import "time"

// Built-in role names.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Role is a named group of permissions. Names are stored trimmed and
// lower-cased.
type Role struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsSystem    bool         `json:"isSystem"`
	Permissions []Permission `json:"permissions"`
	UserCount   int          `json:"userCount"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// PermissionNames returns the names of the role's permissions.
func (r *Role) PermissionNames() []string {
	names := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		names[i] = p.Name
	}
	return names
}

// RoleRequest is the payload for creating or updating a role.
type RoleRequest struct {
	Name          string   `json:"name" binding:"required,min=2,max=50"`
	Description   string   `json:"description" binding:"max=255"`
	PermissionIDs []string `json:"permissions" binding:"omitempty,dive,uuid"`
}
