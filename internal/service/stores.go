package service

import (
	"context"

	"github.com/stemsi/elearning/internal/model"
)

// UserStore is the user persistence used by the services.
// *repository.UserRepository implements it.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
	Create(ctx context.Context, u *model.User, roleIDs []string) error
	Update(ctx context.Context, u *model.User, passwordHash string) error
	ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error
	SetVerified(ctx context.Context, id string, verified bool) error
	Delete(ctx context.Context, id string) error
	EffectivePermissions(ctx context.Context, userID string) ([]string, error)
	IDsByRole(ctx context.Context, roleID string) ([]string, error)
}

// RoleStore is the role persistence used by the services.
type RoleStore interface {
	List(ctx context.Context) ([]model.Role, error)
	GetByID(ctx context.Context, id string) (*model.Role, error)
	Create(ctx context.Context, role *model.Role, permissionIDs []string) error
	Update(ctx context.Context, role *model.Role, permissionIDs []string) error
	Delete(ctx context.Context, id string) error
	CountExisting(ctx context.Context, ids []string) (int, error)
}

// PermissionStore is the permission catalogue persistence.
type PermissionStore interface {
	List(ctx context.Context) ([]model.Permission, error)
	CountExisting(ctx context.Context, ids []string) (int, error)
	Sync(ctx context.Context, defs []model.PermissionDef) (int, error)
}

// CourseStore persists courses and sections.
type CourseStore interface {
	List(ctx context.Context, publishedOnly bool, page, perPage int) ([]model.Course, int, error)
	GetByID(ctx context.Context, id string) (*model.Course, error)
	Create(ctx context.Context, c *model.Course) error
	Update(ctx context.Context, c *model.Course) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
	ListSections(ctx context.Context, courseID string) ([]model.Section, error)
	CreateSection(ctx context.Context, s *model.Section) error
	UpdateSection(ctx context.Context, s *model.Section) error
	DeleteSection(ctx context.Context, id string) error
	ReorderSections(ctx context.Context, courseID string, ids []string) error
}

// CurriculumStore persists modules, lessons and quizzes.
type CurriculumStore interface {
	CourseOfSection(ctx context.Context, sectionID string) (string, error)
	CourseOfModule(ctx context.Context, moduleID string) (string, error)

	ListModules(ctx context.Context, sectionID string) ([]model.Module, error)
	CreateModule(ctx context.Context, m *model.Module) error
	UpdateModule(ctx context.Context, m *model.Module) error
	DeleteModule(ctx context.Context, id string) error
	ReorderModules(ctx context.Context, sectionID string, ids []string) error

	ListLessons(ctx context.Context, moduleID string) ([]model.Lesson, error)
	GetLesson(ctx context.Context, id string) (*model.Lesson, error)
	CreateLesson(ctx context.Context, l *model.Lesson) error
	UpdateLesson(ctx context.Context, l *model.Lesson) error
	DeleteLesson(ctx context.Context, id string) error
	ReorderLessons(ctx context.Context, moduleID string, ids []string) error

	ListQuizzes(ctx context.Context, moduleID string) ([]model.Quiz, error)
	GetQuiz(ctx context.Context, id string) (*model.Quiz, error)
	CreateQuiz(ctx context.Context, q *model.Quiz) error
	UpdateQuiz(ctx context.Context, q *model.Quiz) error
	DeleteQuiz(ctx context.Context, id string) error
	ReorderQuizzes(ctx context.Context, moduleID string, ids []string) error
}
