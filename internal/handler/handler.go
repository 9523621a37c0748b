package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
)

// pathID reads a UUID path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id.String(), true
}

// queryInt reads a positive integer query parameter or returns def.
func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// failService maps service errors to response codes. Unknown errors are
// attached to the context for the request logger and answered with 500.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, response.ErrEmailExists)
	case errors.Is(err, service.ErrRoleNameTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrRoleInUse):
		response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
	case errors.Is(err, service.ErrSystemRole), errors.Is(err, service.ErrSelfAction):
		response.Fail(c, http.StatusForbidden, response.ErrActionForbidden)
	case errors.Is(err, service.ErrUnknownPermission):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"permissions": "contains an unknown permission"})
	case errors.Is(err, service.ErrUnknownRole):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"roles": "contains an unknown role"})
	case errors.Is(err, service.ErrInvalidOrder):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"ids": "must list every item exactly once"})
	case errors.Is(err, service.ErrInvalidQuiz):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"questions": "answer must index one of the options"})
	case errors.Is(err, service.ErrInvalidVerificationToken):
		response.Fail(c, http.StatusBadRequest, response.ErrVerificationToken)
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
