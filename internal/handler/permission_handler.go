package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
)

// PermissionHandler exposes the permission catalogue.
type PermissionHandler struct {
	service *service.PermissionService
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(service *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// ListPermissions returns every permission.
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	perms, err := h.service.List(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": perms})
}
