package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/validator"
)

// UserHandler handles account management.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// ListUsers godoc
// GET /api/v1/users?page=&perPage=&role=&search=
func (h *UserHandler) ListUsers(c *gin.Context) {
	f := model.UserFilter{
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "perPage", 20),
		Search:  c.Query("search"),
	}
	if role := c.Query("role"); role != "" {
		id, err := uuid.Parse(role)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		f.RoleID = id.String()
	}

	users, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		failService(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": users}, response.NewPagination(f.Page, f.PerPage, total))
}

// GetUser returns one user.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// CreateUser godoc
// POST /api/v1/users
// Creates an unverified account and returns its verification token for
// delivery to the user.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, token, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"message":           "User created",
		"user":              user,
		"verificationToken": token,
	})
}

// UpdateUser changes profile fields.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "User updated", "user": user})
}

// AssignRoles replaces a user's roles.
func (h *UserHandler) AssignRoles(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.AssignRolesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.service.AssignRoles(c.Request.Context(), actorID(c), id, req.RoleIDs)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Roles updated", "user": user})
}

// VerifyUser marks a user's email verified.
func (h *UserHandler) VerifyUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Verify(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "User verified")
}

// DeleteUser removes an account.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorID(c), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "User deleted")
}

func actorID(c *gin.Context) string {
	if p := middleware.GetPrincipal(c); p != nil {
		return p.ID
	}
	return ""
}
