package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearning/internal/model"
)

// CourseRepository handles courses and their sections.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

const courseSelect = `
	SELECT id, title, description, published, COALESCE(author_id::text, ''), created_at, updated_at
	FROM courses`

func scanCourse(row pgx.Row) (*model.Course, error) {
	c := &model.Course{}
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Published, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// List returns a page of courses, optionally only published ones.
func (r *CourseRepository) List(ctx context.Context, publishedOnly bool, page, perPage int) ([]model.Course, int, error) {
	where := ""
	if publishedOnly {
		where = " WHERE published"
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM courses"+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		courseSelect+where+" ORDER BY updated_at DESC LIMIT $1 OFFSET $2", perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		courses = append(courses, *c)
	}
	return courses, total, rows.Err()
}

// GetByID retrieves a course without its curriculum.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx, courseSelect+" WHERE id = $1", id))
	return c, classify(err)
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return classify(r.pool.QueryRow(ctx,
		`INSERT INTO courses (title, description, author_id) VALUES ($1, $2, NULLIF($3, '')::uuid)
		 RETURNING id, published, created_at, updated_at`,
		c.Title, c.Description, c.AuthorID,
	).Scan(&c.ID, &c.Published, &c.CreatedAt, &c.UpdatedAt))
}

// Update changes a course's title and description.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) error {
	return classify(r.pool.QueryRow(ctx,
		`UPDATE courses SET title = $1, description = $2, updated_at = NOW() WHERE id = $3
		 RETURNING published, COALESCE(author_id::text, ''), created_at, updated_at`,
		c.Title, c.Description, c.ID,
	).Scan(&c.Published, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt))
}

// SetPublished toggles course visibility.
func (r *CourseRepository) SetPublished(ctx context.Context, id string, published bool) error {
	tag, err := r.pool.Exec(ctx, "UPDATE courses SET published = $1, updated_at = NOW() WHERE id = $2", published, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a course and, by cascade, its whole curriculum.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "courses", id)
}

// ListSections returns a course's sections in order.
func (r *CourseRepository) ListSections(ctx context.Context, courseID string) ([]model.Section, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, course_id, title, position FROM sections WHERE course_id = $1 ORDER BY position, id", courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []model.Section{}
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Title, &s.Position); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// CreateSection appends a section to a course.
func (r *CourseRepository) CreateSection(ctx context.Context, s *model.Section) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sections (course_id, title, position)
		 VALUES ($1, $2, COALESCE((SELECT MAX(position) + 1 FROM sections WHERE course_id = $1), 0))
		 RETURNING id, position`,
		s.CourseID, s.Title,
	).Scan(&s.ID, &s.Position)
	return missingParent(err)
}

// UpdateSection renames a section.
func (r *CourseRepository) UpdateSection(ctx context.Context, s *model.Section) error {
	return classify(r.pool.QueryRow(ctx,
		"UPDATE sections SET title = $1 WHERE id = $2 RETURNING course_id, position",
		s.Title, s.ID,
	).Scan(&s.CourseID, &s.Position))
}

// DeleteSection removes a section and its modules.
func (r *CourseRepository) DeleteSection(ctx context.Context, id string) error {
	return deleteByID(ctx, r.pool, "sections", id)
}

// ReorderSections rewrites section positions within a course.
func (r *CourseRepository) ReorderSections(ctx context.Context, courseID string, ids []string) error {
	return reorder(ctx, r.pool, sectionsOrder, courseID, ids)
}
