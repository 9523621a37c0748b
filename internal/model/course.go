package model

import "time"

// Course is the top of the curriculum tree:
// course -> sections -> modules -> lessons and quizzes.
type Course struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	AuthorID    string    `json:"authorId"`
	Sections    []Section `json:"sections,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Section groups modules inside a course.
type Section struct {
	ID       string   `json:"_id"`
	CourseID string   `json:"courseId"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	Modules  []Module `json:"modules,omitempty"`
}

// Module groups lessons and quizzes inside a section.
type Module struct {
	ID        string   `json:"_id"`
	SectionID string   `json:"sectionId"`
	Title     string   `json:"title"`
	Position  int      `json:"position"`
	Lessons   []Lesson `json:"lessons,omitempty"`
	Quizzes   []Quiz   `json:"quizzes,omitempty"`
}

// Lesson holds markdown content. ContentHTML is filled when a single lesson
// is fetched.
type Lesson struct {
	ID              string    `json:"_id"`
	ModuleID        string    `json:"moduleId"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	ContentHTML     string    `json:"contentHtml,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
	Position        int       `json:"position"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Quiz is a set of multiple-choice questions attached to a module.
type Quiz struct {
	ID           string         `json:"_id"`
	ModuleID     string         `json:"moduleId"`
	Title        string         `json:"title"`
	PassingScore int            `json:"passingScore"`
	Questions    []QuizQuestion `json:"questions"`
	Position     int            `json:"position"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// QuizQuestion is one multiple-choice question. Answer indexes Options.
type QuizQuestion struct {
	Prompt  string   `json:"prompt" binding:"required,max=2000"`
	Options []string `json:"options" binding:"required,min=2,max=10,dive,required"`
	Answer  int      `json:"answer" binding:"gte=0"`
	Points  int      `json:"points" binding:"gte=0,lte=100"`
}

// CourseRequest is the payload for creating or updating a course.
type CourseRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=200"`
	Description string `json:"description" binding:"max=5000"`
}

// PublishRequest toggles course visibility.
type PublishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// TitleRequest is the payload for sections and modules.
type TitleRequest struct {
	Title string `json:"title" binding:"required,min=1,max=200"`
}

// LessonRequest is the payload for creating or updating a lesson.
type LessonRequest struct {
	Title           string `json:"title" binding:"required,min=1,max=200"`
	Content         string `json:"content" binding:"max=100000"`
	DurationMinutes int    `json:"durationMinutes" binding:"gte=0,lte=1440"`
}

// QuizRequest is the payload for creating or updating a quiz.
type QuizRequest struct {
	Title        string         `json:"title" binding:"required,min=1,max=200"`
	PassingScore int            `json:"passingScore" binding:"gte=0,lte=100"`
	Questions    []QuizQuestion `json:"questions" binding:"omitempty,dive"`
}

// ReorderRequest lists sibling IDs in their new order.
type ReorderRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,unique,dive,uuid"`
}
