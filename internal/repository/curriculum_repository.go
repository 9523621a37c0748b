package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearning/internal/model"
)

// ErrInvalidOrder is returned when a reorder request does not list exactly
// the current siblings.
var ErrInvalidOrder = errors.New("order does not match existing siblings")

// orderedTable names a positioned child table and its parent column.
// Values are fixed here and never come from requests.
type orderedTable struct {
	table  string
	parent string
}

var (
	sectionsOrder = orderedTable{"sections", "course_id"}
	modulesOrder  = orderedTable{"modules", "section_id"}
	lessonsOrder  = orderedTable{"lessons", "module_id"}
	quizzesOrder  = orderedTable{"quizzes", "module_id"}
)

// CurriculumRepository handles modules, lessons and quizzes.
type CurriculumRepository struct {
	pool *pgxpool.Pool
}

// NewCurriculumRepository creates a new CurriculumRepository.
func NewCurriculumRepository(pool *pgxpool.Pool) *CurriculumRepository {
	return &CurriculumRepository{pool: pool}
}

// CourseOfSection returns the course a section belongs to.
func (r *CurriculumRepository) CourseOfSection(ctx context.Context, sectionID string) (string, error) {
	var courseID string
	err := r.pool.QueryRow(ctx, "SELECT course_id FROM sections WHERE id = $1", sectionID).Scan(&courseID)
	return courseID, classify(err)
}

// CourseOfModule returns the course a module belongs to.
func (r *CurriculumRepository) CourseOfModule(ctx context.Context, moduleID string) (string, error) {
	var courseID string
	err := r.pool.QueryRow(ctx,
		"SELECT s.course_id FROM modules m JOIN sections s ON s.id = m.section_id WHERE m.id = $1", moduleID,
	).Scan(&courseID)
	return courseID, classify(err)
}

// ─── Modules ──────────────────────────────────────────────────────────────

// ListModules returns a section's modules in order.
func (r *CurriculumRepository) ListModules(ctx context.Context, sectionID string) ([]model.Module, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, section_id, title, position FROM modules WHERE section_id = $1 ORDER BY position, id", sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modules := []model.Module{}
	for rows.Next() {
		var m model.Module
		if err := rows.Scan(&m.ID, &m.SectionID, &m.Title, &m.Position); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// CreateModule appends a module to a section.
func (r *CurriculumRepository) CreateModule(ctx context.Context, m *model.Module) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO modules (section_id, title, position)
		 VALUES ($1, $2, COALESCE((SELECT MAX(position) + 1 FROM modules WHERE section_id = $1), 0))
		 RETURNING id, position`,
		m.SectionID, m.Title,
	).Scan(&m.ID, &m.Position)
	return missingParent(err)
}

// UpdateModule renames a module.
func (r *CurriculumRepository) UpdateModule(ctx context.Context, m *model.Module) error {
	return classify(r.pool.QueryRow(ctx,
		"UPDATE modules SET title = $1 WHERE id = $2 RETURNING section_id, position",
		m.Title, m.ID,
	).Scan(&m.SectionID, &m.Position))
}

// DeleteModule removes a module with its lessons and quizzes.
func (r *CurriculumRepository) DeleteModule(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "modules", id)
}

// ReorderModules rewrites module positions within a section.
func (r *CurriculumRepository) ReorderModules(ctx context.Context, sectionID string, ids []string) error {
	return reorder(ctx, r.pool, modulesOrder, sectionID, ids)
}

// ─── Lessons ──────────────────────────────────────────────────────────────

const lessonSelect = `SELECT id, module_id, title, content, duration_minutes, position, updated_at FROM lessons`

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	l := &model.Lesson{}
	err := row.Scan(&l.ID, &l.ModuleID, &l.Title, &l.Content, &l.DurationMinutes, &l.Position, &l.UpdatedAt)
	return l, err
}

// ListLessons returns a module's lessons in order.
func (r *CurriculumRepository) ListLessons(ctx context.Context, moduleID string) ([]model.Lesson, error) {
	rows, err := r.pool.Query(ctx, lessonSelect+" WHERE module_id = $1 ORDER BY position, id", moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lessons := []model.Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, rows.Err()
}

// GetLesson retrieves one lesson.
func (r *CurriculumRepository) GetLesson(ctx context.Context, id string) (*model.Lesson, error) {
	l, err := scanLesson(r.pool.QueryRow(ctx, lessonSelect+" WHERE id = $1", id))
	return l, classify(err)
}

// CreateLesson appends a lesson to a module.
func (r *CurriculumRepository) CreateLesson(ctx context.Context, l *model.Lesson) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO lessons (module_id, title, content, duration_minutes, position)
		 VALUES ($1, $2, $3, $4, COALESCE((SELECT MAX(position) + 1 FROM lessons WHERE module_id = $1), 0))
		 RETURNING id, position, updated_at`,
		l.ModuleID, l.Title, l.Content, l.DurationMinutes,
	).Scan(&l.ID, &l.Position, &l.UpdatedAt)
	return missingParent(err)
}

// UpdateLesson rewrites a lesson's title, content and duration.
func (r *CurriculumRepository) UpdateLesson(ctx context.Context, l *model.Lesson) error {
	return classify(r.pool.QueryRow(ctx,
		`UPDATE lessons SET title = $1, content = $2, duration_minutes = $3, updated_at = NOW()
		 WHERE id = $4 RETURNING module_id, position, updated_at`,
		l.Title, l.Content, l.DurationMinutes, l.ID,
	).Scan(&l.ModuleID, &l.Position, &l.UpdatedAt))
}

// DeleteLesson removes a lesson.
func (r *CurriculumRepository) DeleteLesson(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "lessons", id)
}

// ReorderLessons rewrites lesson positions within a module.
func (r *CurriculumRepository) ReorderLessons(ctx context.Context, moduleID string, ids []string) error {
	return reorder(ctx, r.pool, lessonsOrder, moduleID, ids)
}

// ─── Quizzes ──────────────────────────────────────────────────────────────

const quizSelect = `SELECT id, module_id, title, passing_score, questions, position, updated_at FROM quizzes`

func scanQuiz(row pgx.Row) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := row.Scan(&q.ID, &q.ModuleID, &q.Title, &q.PassingScore, &q.Questions, &q.Position, &q.UpdatedAt)
	if q.Questions == nil {
		q.Questions = []model.QuizQuestion{}
	}
	return q, err
}

// ListQuizzes returns a module's quizzes in order.
func (r *CurriculumRepository) ListQuizzes(ctx context.Context, moduleID string) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx, quizSelect+" WHERE module_id = $1 ORDER BY position, id", moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := []model.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// GetQuiz retrieves one quiz.
func (r *CurriculumRepository) GetQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	q, err := scanQuiz(r.pool.QueryRow(ctx, quizSelect+" WHERE id = $1", id))
	return q, classify(err)
}

// CreateQuiz appends a quiz to a module.
func (r *CurriculumRepository) CreateQuiz(ctx context.Context, q *model.Quiz) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (module_id, title, passing_score, questions, position)
		 VALUES ($1, $2, $3, $4, COALESCE((SELECT MAX(position) + 1 FROM quizzes WHERE module_id = $1), 0))
		 RETURNING id, position, updated_at`,
		q.ModuleID, q.Title, q.PassingScore, q.Questions,
	).Scan(&q.ID, &q.Position, &q.UpdatedAt)
	return missingParent(err)
}

// UpdateQuiz rewrites a quiz.
func (r *CurriculumRepository) UpdateQuiz(ctx context.Context, q *model.Quiz) error {
	return classify(r.pool.QueryRow(ctx,
		`UPDATE quizzes SET title = $1, passing_score = $2, questions = $3, updated_at = NOW()
		 WHERE id = $4 RETURNING module_id, position, updated_at`,
		q.Title, q.PassingScore, q.Questions, q.ID,
	).Scan(&q.ModuleID, &q.Position, &q.UpdatedAt))
}

// DeleteQuiz removes a quiz.
func (r *CurriculumRepository) DeleteQuiz(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "quizzes", id)
}

// ReorderQuizzes rewrites quiz positions within a module.
func (r *CurriculumRepository) ReorderQuizzes(ctx context.Context, moduleID string, ids []string) error {
	return reorder(ctx, r.pool, quizzesOrder, moduleID, ids)
}

// ─── Shared helpers ───────────────────────────────────────────────────────

// missingParent treats a foreign key failure on insert as a missing parent.
func missingParent(err error) error {
	err = classify(err)
	if errors.Is(err, ErrInUse) {
		return ErrNotFound
	}
	return err
}

func deleteByID(ctx context.Context, pool *pgxpool.Pool, table, id string) error {
	tag, err := pool.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// reorder assigns positions 0..n-1 following ids. ids must list every
// current child of parentID exactly once.
func reorder(ctx context.Context, pool *pgxpool.Pool, t orderedTable, parentID string, ids []string) error {
	return classify(pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var siblings int
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", t.table, t.parent)
		if err := tx.QueryRow(ctx, countQuery, parentID).Scan(&siblings); err != nil {
			return err
		}
		if siblings != len(ids) {
			return ErrInvalidOrder
		}

		updateQuery := fmt.Sprintf(
			`UPDATE %[1]s SET position = o.pos - 1
			 FROM unnest($2::text[]) WITH ORDINALITY AS o(id, pos)
			 WHERE %[1]s.id = o.id::uuid AND %[1]s.%[2]s = $1`, t.table, t.parent)
		tag, err := tx.Exec(ctx, updateQuery, parentID, ids)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(ids) {
			return ErrInvalidOrder
		}
		return nil
	}))
}
