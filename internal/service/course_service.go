package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/model"
)

// CourseService handles courses and their curriculum tree.
type CourseService struct {
	courses    CourseStore
	curriculum CurriculumStore
	log        zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(courses CourseStore, curriculum CurriculumStore, log zerolog.Logger) *CourseService {
	return &CourseService{
		courses:    courses,
		curriculum: curriculum,
		log:        log.With().Str("component", "course_service").Logger(),
	}
}

// canSeeDrafts reports whether the viewer may see unpublished courses.
func canSeeDrafts(viewer *authz.Principal) bool {
	if viewer == nil {
		return false
	}
	return authz.MatchAny(viewer.Permissions, []string{model.PermCourseUpdate, model.PermCoursePublish})
}

// visible reports ErrNotFound when courseID is a draft the viewer cannot see.
func (s *CourseService) visible(ctx context.Context, viewer *authz.Principal, courseID string) error {
	if canSeeDrafts(viewer) {
		return nil
	}
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return notFoundOr(err)
	}
	if !course.Published {
		return ErrNotFound
	}
	return nil
}

func (s *CourseService) sectionVisible(ctx context.Context, viewer *authz.Principal, sectionID string) error {
	if canSeeDrafts(viewer) {
		return nil
	}
	courseID, err := s.curriculum.CourseOfSection(ctx, sectionID)
	if err != nil {
		return notFoundOr(err)
	}
	return s.visible(ctx, viewer, courseID)
}

func (s *CourseService) moduleVisible(ctx context.Context, viewer *authz.Principal, moduleID string) error {
	if canSeeDrafts(viewer) {
		return nil
	}
	courseID, err := s.curriculum.CourseOfModule(ctx, moduleID)
	if err != nil {
		return notFoundOr(err)
	}
	return s.visible(ctx, viewer, courseID)
}

// ─── Courses ──────────────────────────────────────────────────────────────

// ListCourses returns a page of courses visible to viewer.
func (s *CourseService) ListCourses(ctx context.Context, viewer *authz.Principal, page, perPage int) ([]model.Course, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.courses.List(ctx, !canSeeDrafts(viewer), page, perPage)
}

// GetCourse returns a course with its full curriculum. Drafts are reported
// as missing to viewers who cannot edit them.
func (s *CourseService) GetCourse(ctx context.Context, viewer *authz.Principal, id string) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if !course.Published && !canSeeDrafts(viewer) {
		return nil, ErrNotFound
	}

	sections, err := s.courses.ListSections(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	for i := range sections {
		modules, err := s.curriculum.ListModules(ctx, sections[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list modules: %w", err)
		}
		for j := range modules {
			if modules[j].Lessons, err = s.curriculum.ListLessons(ctx, modules[j].ID); err != nil {
				return nil, fmt.Errorf("list lessons: %w", err)
			}
			if modules[j].Quizzes, err = s.curriculum.ListQuizzes(ctx, modules[j].ID); err != nil {
				return nil, fmt.Errorf("list quizzes: %w", err)
			}
		}
		sections[i].Modules = modules
	}
	course.Sections = sections
	return course, nil
}

// CreateCourse creates a draft course owned by authorID.
func (s *CourseService) CreateCourse(ctx context.Context, authorID string, req model.CourseRequest) (*model.Course, error) {
	c := &model.Course{Title: req.Title, Description: req.Description, AuthorID: authorID}
	if err := s.courses.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	s.log.Info().Str("course_id", c.ID).Str("author_id", authorID).Msg("Course created")
	return c, nil
}

// UpdateCourse changes a course's title and description.
func (s *CourseService) UpdateCourse(ctx context.Context, id string, req model.CourseRequest) (*model.Course, error) {
	c := &model.Course{ID: id, Title: req.Title, Description: req.Description}
	if err := s.courses.Update(ctx, c); err != nil {
		return nil, notFoundOr(err)
	}
	return s.courses.GetByID(ctx, id)
}

// SetPublished publishes or unpublishes a course.
func (s *CourseService) SetPublished(ctx context.Context, id string, published bool) error {
	if err := s.courses.SetPublished(ctx, id, published); err != nil {
		return notFoundOr(err)
	}
	s.log.Info().Str("course_id", id).Bool("published", published).Msg("Course visibility changed")
	return nil
}

// DeleteCourse removes a course and its curriculum.
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	return notFoundOr(s.courses.Delete(ctx, id))
}

// ─── Sections ─────────────────────────────────────────────────────────────

// ListSections returns a course's sections in order.
func (s *CourseService) ListSections(ctx context.Context, viewer *authz.Principal, courseID string) ([]model.Section, error) {
	if err := s.visible(ctx, viewer, courseID); err != nil {
		return nil, err
	}
	return s.courses.ListSections(ctx, courseID)
}

// CreateSection appends a section to a course.
func (s *CourseService) CreateSection(ctx context.Context, courseID, title string) (*model.Section, error) {
	sec := &model.Section{CourseID: courseID, Title: title}
	if err := s.courses.CreateSection(ctx, sec); err != nil {
		return nil, notFoundOr(err)
	}
	return sec, nil
}

// UpdateSection renames a section.
func (s *CourseService) UpdateSection(ctx context.Context, id, title string) (*model.Section, error) {
	sec := &model.Section{ID: id, Title: title}
	if err := s.courses.UpdateSection(ctx, sec); err != nil {
		return nil, notFoundOr(err)
	}
	return sec, nil
}

// DeleteSection removes a section and everything below it.
func (s *CourseService) DeleteSection(ctx context.Context, id string) error {
	return notFoundOr(s.courses.DeleteSection(ctx, id))
}

// ReorderSections sets the section order of a course.
func (s *CourseService) ReorderSections(ctx context.Context, courseID string, ids []string) error {
	return notFoundOr(s.courses.ReorderSections(ctx, courseID, ids))
}

// ─── Modules ──────────────────────────────────────────────────────────────

// ListModules returns a section's modules in order.
func (s *CourseService) ListModules(ctx context.Context, viewer *authz.Principal, sectionID string) ([]model.Module, error) {
	if err := s.sectionVisible(ctx, viewer, sectionID); err != nil {
		return nil, err
	}
	return s.curriculum.ListModules(ctx, sectionID)
}

// CreateModule appends a module to a section.
func (s *CourseService) CreateModule(ctx context.Context, sectionID, title string) (*model.Module, error) {
	m := &model.Module{SectionID: sectionID, Title: title}
	if err := s.curriculum.CreateModule(ctx, m); err != nil {
		return nil, notFoundOr(err)
	}
	return m, nil
}

// UpdateModule renames a module.
func (s *CourseService) UpdateModule(ctx context.Context, id, title string) (*model.Module, error) {
	m := &model.Module{ID: id, Title: title}
	if err := s.curriculum.UpdateModule(ctx, m); err != nil {
		return nil, notFoundOr(err)
	}
	return m, nil
}

// DeleteModule removes a module with its lessons and quizzes.
func (s *CourseService) DeleteModule(ctx context.Context, id string) error {
	return notFoundOr(s.curriculum.DeleteModule(ctx, id))
}

// ReorderModules sets the module order of a section.
func (s *CourseService) ReorderModules(ctx context.Context, sectionID string, ids []string) error {
	return notFoundOr(s.curriculum.ReorderModules(ctx, sectionID, ids))
}

// ─── Lessons ──────────────────────────────────────────────────────────────

// ListLessons returns a module's lessons in order, without rendered HTML.
func (s *CourseService) ListLessons(ctx context.Context, viewer *authz.Principal, moduleID string) ([]model.Lesson, error) {
	if err := s.moduleVisible(ctx, viewer, moduleID); err != nil {
		return nil, err
	}
	return s.curriculum.ListLessons(ctx, moduleID)
}

// GetLesson returns a lesson with its content rendered to HTML.
func (s *CourseService) GetLesson(ctx context.Context, viewer *authz.Principal, id string) (*model.Lesson, error) {
	l, err := s.curriculum.GetLesson(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := s.moduleVisible(ctx, viewer, l.ModuleID); err != nil {
		return nil, err
	}
	if l.ContentHTML, err = RenderMarkdown(l.Content); err != nil {
		return nil, fmt.Errorf("render lesson: %w", err)
	}
	return l, nil
}

// CreateLesson appends a lesson to a module.
func (s *CourseService) CreateLesson(ctx context.Context, moduleID string, req model.LessonRequest) (*model.Lesson, error) {
	l := &model.Lesson{ModuleID: moduleID, Title: req.Title, Content: req.Content, DurationMinutes: req.DurationMinutes}
	if err := s.curriculum.CreateLesson(ctx, l); err != nil {
		return nil, notFoundOr(err)
	}
	return l, nil
}

// UpdateLesson replaces a lesson's title, content and duration.
func (s *CourseService) UpdateLesson(ctx context.Context, id string, req model.LessonRequest) (*model.Lesson, error) {
	l := &model.Lesson{ID: id, Title: req.Title, Content: req.Content, DurationMinutes: req.DurationMinutes}
	if err := s.curriculum.UpdateLesson(ctx, l); err != nil {
		return nil, notFoundOr(err)
	}
	return l, nil
}

// DeleteLesson removes a lesson.
func (s *CourseService) DeleteLesson(ctx context.Context, id string) error {
	return notFoundOr(s.curriculum.DeleteLesson(ctx, id))
}

// ReorderLessons sets the lesson order of a module.
func (s *CourseService) ReorderLessons(ctx context.Context, moduleID string, ids []string) error {
	return notFoundOr(s.curriculum.ReorderLessons(ctx, moduleID, ids))
}

// ─── Quizzes ──────────────────────────────────────────────────────────────

// ListQuizzes returns a module's quizzes in order.
func (s *CourseService) ListQuizzes(ctx context.Context, viewer *authz.Principal, moduleID string) ([]model.Quiz, error) {
	if err := s.moduleVisible(ctx, viewer, moduleID); err != nil {
		return nil, err
	}
	return s.curriculum.ListQuizzes(ctx, moduleID)
}

// GetQuiz returns a single quiz.
func (s *CourseService) GetQuiz(ctx context.Context, viewer *authz.Principal, id string) (*model.Quiz, error) {
	q, err := s.curriculum.GetQuiz(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := s.moduleVisible(ctx, viewer, q.ModuleID); err != nil {
		return nil, err
	}
	return q, nil
}

// CreateQuiz appends a quiz to a module.
func (s *CourseService) CreateQuiz(ctx context.Context, moduleID string, req model.QuizRequest) (*model.Quiz, error) {
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}
	q := &model.Quiz{ModuleID: moduleID, Title: req.Title, PassingScore: req.PassingScore, Questions: req.Questions}
	if err := s.curriculum.CreateQuiz(ctx, q); err != nil {
		return nil, notFoundOr(err)
	}
	return q, nil
}

// UpdateQuiz replaces a quiz's title, passing score and questions.
func (s *CourseService) UpdateQuiz(ctx context.Context, id string, req model.QuizRequest) (*model.Quiz, error) {
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}
	q := &model.Quiz{ID: id, Title: req.Title, PassingScore: req.PassingScore, Questions: req.Questions}
	if err := s.curriculum.UpdateQuiz(ctx, q); err != nil {
		return nil, notFoundOr(err)
	}
	return q, nil
}

// DeleteQuiz removes a quiz.
func (s *CourseService) DeleteQuiz(ctx context.Context, id string) error {
	return notFoundOr(s.curriculum.DeleteQuiz(ctx, id))
}

// ReorderQuizzes sets the quiz order of a module.
func (s *CourseService) ReorderQuizzes(ctx context.Context, moduleID string, ids []string) error {
	return notFoundOr(s.curriculum.ReorderQuizzes(ctx, moduleID, ids))
}

// validateQuestions checks every answer indexes one of its options.
func validateQuestions(questions []model.QuizQuestion) error {
	for _, q := range questions {
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return ErrInvalidQuiz
		}
	}
	return nil
}
