package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Every body carries a top-level "success" flag so clients can treat a
// missing or false flag as failure without inspecting status codes.

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Success  bool              `json:"success"`
	Code     ErrCode           `json:"code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Metadata Metadata          `json:"metadata"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes total pages for the given page window.
func NewPagination(page, perPage, total int) *Pagination {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return &Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends {"success": true, ...payload, "metadata": {...}}.
func Success(c *gin.Context, statusCode int, payload gin.H) {
	body := gin.H{}
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	body["metadata"] = buildMetadata(c)
	c.JSON(statusCode, body)
}

// Message sends a success body carrying only a message.
func Message(c *gin.Context, statusCode int, msg string) {
	Success(c, statusCode, gin.H{"message": msg})
}

// SuccessWithPagination sends a success body with pagination metadata.
func SuccessWithPagination(c *gin.Context, statusCode int, payload gin.H, pagination *Pagination) {
	body := gin.H{"pagination": pagination}
	for k, v := range payload {
		body[k] = v
	}
	Success(c, statusCode, body)
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, failBody(c, code, nil))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, failBody(c, code, fields))
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, failBody(c, code, nil))
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func failBody(c *gin.Context, code ErrCode, fields map[string]string) ErrorBody {
	return ErrorBody{
		Success:  false,
		Code:     code,
		Message:  GetMessage(code),
		Fields:   fields,
		Metadata: buildMetadata(c),
	}
}

func buildMetadata(c *gin.Context) Metadata {
	id := c.GetString(ContextKeyRequestID)
	if id == "" {
		id = uuid.New().String() // request ID middleware not applied
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
