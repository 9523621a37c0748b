package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/validator"
)

// RoleHandler handles role management.
type RoleHandler struct {
	service *service.RoleService
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(service *service.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

// ListRoles gets all roles with their permissions.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.List(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

// GetRole gets a role and its permissions by ID.
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	role, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"role": role})
}

// CreateRole creates a role with the given permissions.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req model.RoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"message": "Role created", "role": role})
}

// UpdateRole renames a role and replaces its permissions.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.RoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Role updated", "role": role})
}

// DeleteRole removes a role that no user holds.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Role deleted")
}
