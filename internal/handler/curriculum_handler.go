package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/validator"
)

// CurriculumHandler handles modules, lessons and quizzes.
type CurriculumHandler struct {
	service *service.CourseService
}

// NewCurriculumHandler creates a new CurriculumHandler.
func NewCurriculumHandler(service *service.CourseService) *CurriculumHandler {
	return &CurriculumHandler{service: service}
}

// reorder handles every PUT .../order route: the path ID is the parent and
// the body lists its children in their new order.
func reorder(c *gin.Context, apply func(ctx context.Context, parentID string, ids []string) error) {
	parentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.ReorderRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := apply(c.Request.Context(), parentID, req.IDs); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Order saved")
}

// ─── Modules ──────────────────────────────────────────────────────────────

// ListModules returns a section's modules.
func (h *CurriculumHandler) ListModules(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	modules, err := h.service.ListModules(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"modules": modules})
}

// CreateModule appends a module to a section.
func (h *CurriculumHandler) CreateModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.TitleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	m, err := h.service.CreateModule(c.Request.Context(), id, req.Title)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"module": m})
}

// UpdateModule renames a module.
func (h *CurriculumHandler) UpdateModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.TitleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	m, err := h.service.UpdateModule(c.Request.Context(), id, req.Title)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"module": m})
}

// DeleteModule removes a module.
func (h *CurriculumHandler) DeleteModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteModule(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Module deleted")
}

// ReorderModules sets the module order of a section.
func (h *CurriculumHandler) ReorderModules(c *gin.Context) {
	reorder(c, h.service.ReorderModules)
}

// ─── Lessons ──────────────────────────────────────────────────────────────

// ListLessons returns a module's lessons.
func (h *CurriculumHandler) ListLessons(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lessons, err := h.service.ListLessons(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lessons": lessons})
}

// GetLesson returns a lesson with rendered HTML content.
func (h *CurriculumHandler) GetLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lesson, err := h.service.GetLesson(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lesson": lesson})
}

// CreateLesson appends a lesson to a module.
func (h *CurriculumHandler) CreateLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.LessonRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	lesson, err := h.service.CreateLesson(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"lesson": lesson})
}

// UpdateLesson replaces a lesson's content.
func (h *CurriculumHandler) UpdateLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.LessonRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	lesson, err := h.service.UpdateLesson(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"lesson": lesson})
}

// DeleteLesson removes a lesson.
func (h *CurriculumHandler) DeleteLesson(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteLesson(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Lesson deleted")
}

// ReorderLessons sets the lesson order of a module.
func (h *CurriculumHandler) ReorderLessons(c *gin.Context) {
	reorder(c, h.service.ReorderLessons)
}

// ─── Quizzes ──────────────────────────────────────────────────────────────

// ListQuizzes returns a module's quizzes.
func (h *CurriculumHandler) ListQuizzes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quizzes, err := h.service.ListQuizzes(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// GetQuiz returns a quiz.
func (h *CurriculumHandler) GetQuiz(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.service.GetQuiz(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// CreateQuiz appends a quiz to a module.
func (h *CurriculumHandler) CreateQuiz(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.QuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	quiz, err := h.service.CreateQuiz(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// UpdateQuiz replaces a quiz.
func (h *CurriculumHandler) UpdateQuiz(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.QuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	quiz, err := h.service.UpdateQuiz(c.Request.Context(), id, req)
	if err != nil {
		failService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuiz removes a quiz.
func (h *CurriculumHandler) DeleteQuiz(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteQuiz(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Quiz deleted")
}

// ReorderQuizzes sets the quiz order of a module.
func (h *CurriculumHandler) ReorderQuizzes(c *gin.Context) {
	reorder(c, h.service.ReorderQuizzes)
}
