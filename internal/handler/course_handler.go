package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/validator"
)

// CourseHandler handles courses and sections.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(service *service.CourseService) *CourseHandler {
	return &CourseHandler{service: service}
}

// ListCourses godoc
// GET /api/v1/courses?page=&perPage=
// Viewers without edit rights only see published courses.
func (h *CourseHandler) ListCourses(c *gin.Context) {
	page, perPage := queryInt(c, "page", 1), queryInt(c, "perPage", 20)
	courses, total, err := h.service.ListCourses(c.Request.Context(), middleware.GetPrincipal(c), page, perPage)
	if err != nil {
		failService(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"courses": courses}, response.NewPagination(page, perPage, total))
}

// GetCourse returns a course with its curriculum tree.
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	course, err := h.service.GetCourse(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// CreateCourse creates a draft course.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req model.CourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), actorID(c), req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"message": "Course created", "course": course})
}

// UpdateCourse changes title and description.
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.CourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	course, err := h.service.UpdateCourse(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Course updated", "course": course})
}

// PublishCourse godoc
// PUT /api/v1/courses/:id/publish {published}
func (h *CourseHandler) PublishCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.PublishRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.service.SetPublished(c.Request.Context(), id, *req.Published); err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"published": *req.Published})
}

// DeleteCourse removes a course and its curriculum.
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCourse(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Course deleted")
}

// ─── Sections ─────────────────────────────────────────────────────────────

// ListSections returns a course's sections.
func (h *CourseHandler) ListSections(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sections, err := h.service.ListSections(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sections": sections})
}

// CreateSection appends a section to a course.
func (h *CourseHandler) CreateSection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.TitleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	section, err := h.service.CreateSection(c.Request.Context(), id, req.Title)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"section": section})
}

// UpdateSection renames a section.
func (h *CourseHandler) UpdateSection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.TitleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	section, err := h.service.UpdateSection(c.Request.Context(), id, req.Title)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"section": section})
}

// DeleteSection removes a section.
func (h *CourseHandler) DeleteSection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSection(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Section deleted")
}

// ReorderSections godoc
// PUT /api/v1/courses/:id/sections/order {ids}
func (h *CourseHandler) ReorderSections(c *gin.Context) {
	reorder(c, h.service.ReorderSections)
}
